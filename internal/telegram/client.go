// Package telegram reads and writes bot profile metadata through the
// Telegram Bot API on behalf of a caller-supplied bot token.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/edgard/botmeta/internal/config"
	apperrors "github.com/edgard/botmeta/internal/errors"
	"github.com/edgard/botmeta/internal/metadata"
)

// BotIdentity is what getMe reports for a valid token.
type BotIdentity struct {
	ID            int64  `json:"id"`
	IsBot         bool   `json:"is_bot"`
	FirstName     string `json:"first_name"`
	Username      string `json:"username"`
	CanJoinGroups bool   `json:"can_join_groups"`
}

// Client performs Bot API calls. It holds no per-bot state: every operation
// builds its own API handle from the token it is given.
type Client struct {
	cfg        config.TelegramConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *slog.Logger
}

// NewClient creates a Client. A positive cfg.RequestsPerSecond throttles all
// outgoing calls made through this Client.
func NewClient(cfg config.TelegramConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")

	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		log:        logger.With("component", "telegram_client"),
	}
	if cfg.RequestsPerSecond > 0 {
		burst := max(1, int(cfg.RequestsPerSecond))
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return c
}

func (c *Client) newBot(token string) (*tgbot.Bot, error) {
	if token == "" {
		return nil, apperrors.NewValidationError("telegram bot token cannot be empty", nil)
	}

	b, err := tgbot.New(token,
		tgbot.WithSkipGetMe(),
		tgbot.WithServerURL(c.cfg.APIURL),
		tgbot.WithHTTPClient(c.cfg.RequestTimeout, c.httpClient),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return b, nil
}

// call throttles, runs fn and normalizes its failure.
func call[T any](ctx context.Context, c *Client, token, method string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return zero, apperrors.NewRemoteError(method, 0, err.Error(), apperrors.KindNetwork, err)
		}
	}

	v, err := fn(ctx)
	if err != nil {
		return zero, normalizeError(method, token, err)
	}
	return v, nil
}

// FetchDefaultMetadata reads the metadata shown to users with no dedicated localization.
func (c *Client) FetchDefaultMetadata(ctx context.Context, token string) (metadata.BotMetadata, error) {
	return c.fetch(ctx, token, "")
}

// FetchLocalizedMetadata reads the metadata stored for one language code.
func (c *Client) FetchLocalizedMetadata(ctx context.Context, token, code string) (metadata.BotMetadata, error) {
	return c.fetch(ctx, token, code)
}

// fetch issues the four reads concurrently. Any read failing fails the fetch.
func (c *Client) fetch(ctx context.Context, token, code string) (metadata.BotMetadata, error) {
	b, err := c.newBot(token)
	if err != nil {
		return metadata.BotMetadata{}, err
	}

	var md metadata.BotMetadata
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		name, err := call(gCtx, c, token, "getMyName", func(ctx context.Context) (string, error) {
			res, err := b.GetMyName(ctx, &tgbot.GetMyNameParams{LanguageCode: code})
			if err != nil {
				return "", err
			}
			return res.Name, nil
		})
		md.Name = name
		return err
	})

	g.Go(func() error {
		desc, err := call(gCtx, c, token, "getMyDescription", func(ctx context.Context) (string, error) {
			res, err := b.GetMyDescription(ctx, &tgbot.GetMyDescriptionParams{LanguageCode: code})
			if err != nil {
				return "", err
			}
			return res.Description, nil
		})
		md.Description = desc
		return err
	})

	g.Go(func() error {
		short, err := call(gCtx, c, token, "getMyShortDescription", func(ctx context.Context) (string, error) {
			res, err := b.GetMyShortDescription(ctx, &tgbot.GetMyShortDescriptionParams{LanguageCode: code})
			if err != nil {
				return "", err
			}
			return res.ShortDescription, nil
		})
		md.ShortDescription = short
		return err
	})

	g.Go(func() error {
		cmds, err := call(gCtx, c, token, "getMyCommands", func(ctx context.Context) ([]models.BotCommand, error) {
			return b.GetMyCommands(ctx, &tgbot.GetMyCommandsParams{LanguageCode: code})
		})
		md.Commands = fromModelCommands(cmds)
		return err
	})

	if err := g.Wait(); err != nil {
		c.log.DebugContext(ctx, "Metadata fetch failed", "language_code", code, "error", err)
		return metadata.BotMetadata{}, err
	}
	return md, nil
}

// SaveMetadata writes all four fields for code (empty for the default) and
// reports each write independently. A failed write does not stop or undo the others.
func (c *Client) SaveMetadata(ctx context.Context, token string, md metadata.BotMetadata, code string) metadata.Outcomes {
	b, err := c.newBot(token)
	if err != nil {
		return metadata.NewOutcomes([4]error{err, err, err, err})
	}

	outcomes := c.mutate(ctx, [4]func(context.Context) error{
		func(ctx context.Context) error {
			return c.write(ctx, token, "setMyName", func(ctx context.Context) (bool, error) {
				return b.SetMyName(ctx, &tgbot.SetMyNameParams{Name: md.Name, LanguageCode: code})
			})
		},
		func(ctx context.Context) error {
			return c.write(ctx, token, "setMyDescription", func(ctx context.Context) (bool, error) {
				return b.SetMyDescription(ctx, &tgbot.SetMyDescriptionParams{Description: md.Description, LanguageCode: code})
			})
		},
		func(ctx context.Context) error {
			return c.write(ctx, token, "setMyShortDescription", func(ctx context.Context) (bool, error) {
				return b.SetMyShortDescription(ctx, &tgbot.SetMyShortDescriptionParams{ShortDescription: md.ShortDescription, LanguageCode: code})
			})
		},
		func(ctx context.Context) error {
			return c.write(ctx, token, "setMyCommands", func(ctx context.Context) (bool, error) {
				return b.SetMyCommands(ctx, &tgbot.SetMyCommandsParams{Commands: toModelCommands(md.Commands), LanguageCode: code})
			})
		},
	})

	c.log.InfoContext(ctx, "Saved metadata", "language_code", code, "all_ok", outcomes.AllOK(), "failed_fields", outcomes.FailedFields())
	return outcomes
}

// DeleteLocalization resets code to inherit the default: the three text
// fields are cleared and the command list is removed with deleteMyCommands.
func (c *Client) DeleteLocalization(ctx context.Context, token, code string) metadata.Outcomes {
	b, err := c.newBot(token)
	if err != nil {
		return metadata.NewOutcomes([4]error{err, err, err, err})
	}

	outcomes := c.mutate(ctx, [4]func(context.Context) error{
		func(ctx context.Context) error {
			return c.write(ctx, token, "setMyName", func(ctx context.Context) (bool, error) {
				return b.SetMyName(ctx, &tgbot.SetMyNameParams{LanguageCode: code})
			})
		},
		func(ctx context.Context) error {
			return c.write(ctx, token, "setMyDescription", func(ctx context.Context) (bool, error) {
				return b.SetMyDescription(ctx, &tgbot.SetMyDescriptionParams{LanguageCode: code})
			})
		},
		func(ctx context.Context) error {
			return c.write(ctx, token, "setMyShortDescription", func(ctx context.Context) (bool, error) {
				return b.SetMyShortDescription(ctx, &tgbot.SetMyShortDescriptionParams{LanguageCode: code})
			})
		},
		func(ctx context.Context) error {
			return c.write(ctx, token, "deleteMyCommands", func(ctx context.Context) (bool, error) {
				return b.DeleteMyCommands(ctx, &tgbot.DeleteMyCommandsParams{LanguageCode: code})
			})
		},
	})

	c.log.InfoContext(ctx, "Deleted localization", "language_code", code, "all_ok", outcomes.AllOK(), "failed_fields", outcomes.FailedFields())
	return outcomes
}

// mutate runs the four writes concurrently and collects every result.
func (c *Client) mutate(ctx context.Context, writes [4]func(context.Context) error) metadata.Outcomes {
	var (
		errs [4]error
		g    errgroup.Group
	)
	for i, write := range writes {
		g.Go(func() error {
			errs[i] = write(ctx)
			return nil
		})
	}
	_ = g.Wait()
	return metadata.NewOutcomes(errs)
}

func (c *Client) write(ctx context.Context, token, method string, fn func(context.Context) (bool, error)) error {
	ok, err := call(ctx, c, token, method, fn)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NewRemoteError(method, 0, "request was not applied", apperrors.KindRemote, nil)
	}
	return nil
}

// ValidateCredential checks the token with getMe. A token the API refuses
// (401, or 404 for a token it cannot route) yields a CredentialError; every
// other failure keeps its kind.
func (c *Client) ValidateCredential(ctx context.Context, token string) (BotIdentity, error) {
	b, err := c.newBot(token)
	if err != nil {
		return BotIdentity{}, err
	}

	me, err := call(ctx, c, token, "getMe", func(ctx context.Context) (*models.User, error) {
		return b.GetMe(ctx)
	})
	if err != nil {
		if isRejectedToken(err) {
			return BotIdentity{}, apperrors.NewCredentialError("bot token rejected", err)
		}
		return BotIdentity{}, err
	}

	c.log.DebugContext(ctx, "Credential validated", "bot_id", me.ID, "bot_username", me.Username)
	return BotIdentity{
		ID:            me.ID,
		IsBot:         me.IsBot,
		FirstName:     me.FirstName,
		Username:      me.Username,
		CanJoinGroups: me.CanJoinGroups,
	}, nil
}

func isRejectedToken(err error) bool {
	var remote *apperrors.RemoteError
	if !errors.As(err, &remote) {
		return false
	}
	return remote.Status == http.StatusUnauthorized || remote.Status == http.StatusNotFound
}

// SendMessage posts a plain text message from the bot to chatID.
func (c *Client) SendMessage(ctx context.Context, token string, chatID int64, text string) error {
	b, err := c.newBot(token)
	if err != nil {
		return err
	}

	_, err = call(ctx, c, token, "sendMessage", func(ctx context.Context) (*models.Message, error) {
		return b.SendMessage(ctx, &tgbot.SendMessageParams{ChatID: chatID, Text: text})
	})
	return err
}

func fromModelCommands(cmds []models.BotCommand) []metadata.BotCommand {
	out := make([]metadata.BotCommand, 0, len(cmds))
	for _, cmd := range cmds {
		out = append(out, metadata.BotCommand{Command: cmd.Command, Description: cmd.Description})
	}
	return out
}

// toModelCommands never returns nil so an empty list is sent as [] rather than null.
func toModelCommands(cmds []metadata.BotCommand) []models.BotCommand {
	out := make([]models.BotCommand, 0, len(cmds))
	for _, cmd := range cmds {
		out = append(out, models.BotCommand{Command: cmd.Command, Description: cmd.Description})
	}
	return out
}
