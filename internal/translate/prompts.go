package translate

// SystemInstruction tells the model how to translate bot metadata.
const SystemInstruction = `You are a professional translator of Telegram bot profile metadata.
Translate every text field faithfully, keeping the tone and intent of the original.
Command names (the "command" field) are identifiers: never translate or change them, and keep the commands in the order given.
Translate only the command descriptions.
Keep the result concise and professional and respect Telegram limits: name up to 64 characters, short description up to 120, description up to 512, command descriptions up to 256.
Respond with JSON matching the provided schema.`

// promptTemplate expects source language, target language, name, short
// description, description and the command list, in that order.
const promptTemplate = `Source language: %s
Target language: %s

Name: %s
Short description: %s
Description: %s
Commands:
%s`
