package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/oauth2"

	"github.com/jsean662/MailFlowAI/internal/app"
	"github.com/jsean662/MailFlowAI/internal/assistant"
	"github.com/jsean662/MailFlowAI/internal/cache"
	"github.com/jsean662/MailFlowAI/internal/credential"
	"github.com/jsean662/MailFlowAI/internal/gateway"
	"github.com/jsean662/MailFlowAI/internal/gateway/gmailapi"
	"github.com/jsean662/MailFlowAI/internal/gateway/imapgw"
	"github.com/jsean662/MailFlowAI/internal/gateway/rest"
	"github.com/jsean662/MailFlowAI/internal/mailstore"
	"github.com/jsean662/MailFlowAI/internal/model"
	appsync "github.com/jsean662/MailFlowAI/internal/sync"
)

func main() {
	configPath := flag.String("config", model.DefaultConfigPath(), "path to configuration file")
	login := flag.Bool("login", false, "sign in to the mail backend and store the session token")
	flag.Parse()

	if err := run(*configPath, *login); err != nil {
		fmt.Fprintf(os.Stderr, "mailflow: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, login bool) error {
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return err
	}

	if login {
		return runLogin(cfg)
	}

	gw, auth, err := buildGateway(cfg)
	if err != nil {
		return err
	}

	if auth != nil && !auth.CheckAuthenticated(context.Background()) {
		if cfg.Account.Mode == model.AccountModeREST {
			return fmt.Errorf("not signed in; run mailflow -login")
		}
		fmt.Fprintln(os.Stderr, "mailflow: warning: could not verify the session; mail operations may fail")
	}

	// The cache wraps the gateway the store sees; the session layer
	// keeps talking to the raw backend.
	if cfg.Cache.Path != "" {
		cacheStore, err := cache.NewStore(cfg.Cache.Path)
		if err != nil {
			return fmt.Errorf("opening cache: %w", err)
		}
		defer cacheStore.Close()

		gw = cache.Wrap(
			gw,
			cacheStore,
			time.Duration(cfg.Cache.ListTTLSec)*time.Second,
			time.Duration(cfg.Cache.DetailTTLSec)*time.Second,
		)
	}

	sink := app.NewNotificationSink()
	store := mailstore.New(gw, sink)

	interval := time.Duration(cfg.Sync.PollIntervalSec) * time.Second
	poller := appsync.New(store, interval)

	drafts := assistant.NewDraftManager()
	ai := loadAssistant(cfg, store, gw, drafts)

	m := app.New(store, gw, auth, poller, ai, drafts, sink)

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running UI: %w", err)
	}
	return nil
}

// runLogin walks the user through the backend's browser sign-in and
// stores the resulting session token in the system keyring. Only the
// rest mode has a session to establish; the other modes read their
// credentials from the keyring directly.
func runLogin(cfg *model.AppConfig) error {
	if cfg.Account.Mode != model.AccountModeREST {
		return fmt.Errorf("-login applies to the rest account mode; mode is %q", cfg.Account.Mode)
	}

	client, err := rest.NewClient(cfg.Account.BackendURL, "")
	if err != nil {
		return fmt.Errorf("creating backend client: %w", err)
	}

	fmt.Printf("Open this URL in a browser and complete the sign-in:\n\n  %s\n\n", client.LoginURL())
	fmt.Print("Paste the session token: ")

	reader := bufio.NewReader(os.Stdin)
	token, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("reading session token: %w", err)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("empty session token")
	}

	if err := credential.Set(credential.KeyBackendSession, token); err != nil {
		return fmt.Errorf("storing session token: %w", err)
	}

	fmt.Println("Session stored. Run mailflow to start.")
	return nil
}

// buildGateway constructs the mail gateway selected by the account mode.
func buildGateway(cfg *model.AppConfig) (gateway.Gateway, gateway.Authenticator, error) {
	switch cfg.Account.Mode {
	case model.AccountModeREST:
		session, err := credential.Get(credential.KeyBackendSession)
		if err != nil {
			session = ""
		}
		client, err := rest.NewClient(cfg.Account.BackendURL, session)
		if err != nil {
			return nil, nil, fmt.Errorf("creating backend client: %w", err)
		}
		return client, client, nil

	case model.AccountModeGmail:
		tokenJSON, err := credential.Get(credential.KeyGmailToken)
		if err != nil || tokenJSON == "" {
			return nil, nil, fmt.Errorf("no Gmail OAuth token in keyring (key %q)", credential.KeyGmailToken)
		}
		var token oauth2.Token
		if err := json.Unmarshal([]byte(tokenJSON), &token); err != nil {
			return nil, nil, fmt.Errorf("parsing Gmail OAuth token: %w", err)
		}
		gw, err := gmailapi.New(context.Background(), oauth2.StaticTokenSource(&token))
		if err != nil {
			return nil, nil, fmt.Errorf("creating Gmail client: %w", err)
		}
		return gw, gw, nil

	case model.AccountModeIMAP:
		password, err := credential.Get(credential.KeyIMAPPassword)
		if err != nil || password == "" {
			return nil, nil, fmt.Errorf("no IMAP password in keyring (key %q)", credential.KeyIMAPPassword)
		}
		gw := imapgw.New(imapgw.Config{
			IMAPHost: cfg.Account.IMAPHost,
			IMAPPort: cfg.Account.IMAPPort,
			SMTPAddr: net.JoinHostPort(cfg.Account.SMTPHost, cfg.Account.SMTPPort),
			Username: cfg.Account.Email,
			Password: password,
			TLS:      cfg.Account.IMAPTLS,
		})
		return gw, gw, nil

	default:
		return nil, nil, fmt.Errorf("unknown account mode %q", cfg.Account.Mode)
	}
}

// loadAssistant creates the AI assistant when an API key is available,
// from the environment first and the system keyring second.
func loadAssistant(
	cfg *model.AppConfig,
	store *mailstore.Store,
	gw gateway.Gateway,
	drafts *assistant.DraftManager,
) *assistant.Assistant {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		var err error
		apiKey, err = credential.Get(credential.KeyAnthropicAPI)
		if err != nil || apiKey == "" {
			return nil
		}
	}

	return assistant.New(apiKey, store, gw, drafts, cfg.AI.Model, cfg.AI.MaxTokens)
}
