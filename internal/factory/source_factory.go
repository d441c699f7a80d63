package factory

import (
	"context"
	"fmt"

	"github.com/mikey/mail-sentinel/internal/adapters/gmailsource"
	"github.com/mikey/mail-sentinel/internal/adapters/imapsource"
	"github.com/mikey/mail-sentinel/internal/config"
	"github.com/mikey/mail-sentinel/internal/core"
	"github.com/mikey/mail-sentinel/internal/credential"
	"go.uber.org/zap"
)

// SourceFactory turns mailbox configuration into source constructors
type SourceFactory struct {
	cfg    *config.Config
	store  credential.Store
	logger *zap.Logger
}

// NewSourceFactory creates a new source factory
func NewSourceFactory(cfg *config.Config, store credential.Store, logger *zap.Logger) *SourceFactory {
	return &SourceFactory{
		cfg:    cfg,
		store:  store,
		logger: logger,
	}
}

// CreateConstructors returns one constructor per enabled account. Nothing
// connects until the constructors are invoked.
func (f *SourceFactory) CreateConstructors() ([]core.SourceConstructor, error) {
	monitorCfg, err := f.cfg.GetMonitor()
	if err != nil {
		return nil, err
	}
	accounts, err := f.cfg.GetMailboxes()
	if err != nil {
		return nil, err
	}

	var ctors []core.SourceConstructor
	for _, acct := range accounts {
		if !acct.IsEnabled() {
			f.logger.Info("Skipping disabled account", zap.String("account", acct.Name))
			continue
		}
		ctors = append(ctors, core.SourceConstructor{
			Name:       acct.Name,
			UnreadOnly: acct.UnreadOnly(monitorCfg.ProcessOnlyUnread),
			Open:       f.opener(acct),
		})
	}
	return ctors, nil
}

func (f *SourceFactory) opener(acct config.AccountConfig) func(ctx context.Context) (core.MailboxSource, error) {
	switch acct.Type {
	case "imap":
		return func(ctx context.Context) (core.MailboxSource, error) {
			return f.openIMAP(ctx, acct)
		}
	case "gmail":
		return func(ctx context.Context) (core.MailboxSource, error) {
			return gmailsource.New(ctx, gmailsource.Options{
				Name:              acct.Name,
				CredentialsFile:   acct.CredentialsFile,
				TokenFile:         GmailTokenFile(acct),
				JunkLabel:         acct.JunkLabel,
				RequestsPerSecond: acct.RequestsPerSecond,
			}, f.logger)
		}
	default:
		return func(context.Context) (core.MailboxSource, error) {
			return nil, fmt.Errorf("unsupported mailbox type: %s", acct.Type)
		}
	}
}

func (f *SourceFactory) openIMAP(ctx context.Context, acct config.AccountConfig) (core.MailboxSource, error) {
	password, err := credential.Resolve(f.store, acct.Password, credential.MailboxPasswordKey(acct.Name))
	if err != nil {
		return nil, err
	}
	security := imapsource.SecurityTLS
	if !acct.UseTLS() {
		security = imapsource.SecurityStartTLS
	}
	src, err := imapsource.New(imapsource.Options{
		Name:       acct.Name,
		Server:     acct.Server,
		Port:       acct.Port,
		Username:   acct.Username,
		Password:   password,
		Security:   security,
		Folder:     acct.Folder,
		JunkFolder: acct.JunkFolder,
	}, f.logger)
	if err != nil {
		return nil, err
	}
	if err := src.Open(ctx); err != nil {
		return nil, err
	}
	return src, nil
}

// GmailTokenFile returns the token path for a Gmail account
func GmailTokenFile(acct config.AccountConfig) string {
	if acct.TokenFile != "" {
		return acct.TokenFile
	}
	return acct.Name + "_token.json"
}
