package cmd

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/certward/certward/allowlist"
	"github.com/certward/certward/certrecord"
	_ "github.com/certward/certward/certrecord/boltstore"
	_ "github.com/certward/certward/certrecord/memstore"
	"github.com/certward/certward/certrecord/pgstore"
	"github.com/certward/certward/config"
	"github.com/certward/certward/instance"
	"github.com/certward/certward/secrets"
	"github.com/certward/certward/signer"
	"github.com/certward/certward/signer/localsigner"
)

// dbPasswordEnv carries the record store password. It is read once at
// startup, sealed into an enclave, and removed from the environment.
const dbPasswordEnv = "CERTWARD_DB_PASSWORD"

var configPath string

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the identity issuance server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		log := newLogger(cfg.Logging.Level)
		slog.SetDefault(log)

		ca, err := buildSigner(cfg.Signer, log)
		if err != nil {
			return err
		}

		opts := []instance.Option{instance.WithLogger(log)}

		// allowlist load failures are fatal: a configured but unusable
		// file must not silently become allow-all
		refreshList, err := allowlist.Load(cfg.Allowlist.CertRefreshPath, log)
		if err != nil {
			return fmt.Errorf("loading cert refresh allowlist: %w", err)
		}
		registerList, err := allowlist.Load(cfg.Allowlist.InstanceRegisterPath, log)
		if err != nil {
			return fmt.Errorf("loading instance register allowlist: %w", err)
		}
		opts = append(opts,
			instance.WithRefreshAllowlist(refreshList),
			instance.WithRegisterAllowlist(registerList),
		)

		var store certrecord.Store
		if cfg.RecordStore.Backend != "" {
			accessor, err := buildSecretsAccessor(cfg.RecordStore)
			if err != nil {
				return err
			}
			store, err = certrecord.Open(cfg.RecordStore.Backend, certrecord.Config{
				Path:             cfg.RecordStore.Path,
				DSN:              cfg.RecordStore.DSN,
				OperationTimeout: cfg.RecordStore.OperationTimeout(),
			}, accessor)
			if err != nil {
				return err
			}
			defer store.Close()
			opts = append(opts, instance.WithRecordStore(store))
			if cfg.RecordStore.FailClosed {
				opts = append(opts, instance.WithFailClosedReplay())
			}
		} else {
			log.Warn("no record store configured; replay detection disabled")
		}

		manager := instance.New(ca, opts...)

		r := newRouter(cfg, manager, refreshList, registerList)

		tlsConfig, err := buildTLSConfig(cfg.Server, log)
		if err != nil {
			return err
		}

		server := &http.Server{
			Addr:              cfg.Server.ListenAddr,
			Handler:           r,
			TLSConfig:         tlsConfig,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		// Graceful shutdown on SIGINT/SIGTERM.
		done := make(chan error, 1)
		go func() {
			if err := server.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
				done <- fmt.Errorf("server failed: %w", err)
				return
			}
			done <- nil
		}()

		printBanner()
		log.Info("server started", "addr", cfg.Server.ListenAddr,
			"record_store", cfg.RecordStore.Backend)

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			log.Info("shutting down", "signal", sig.String())
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			return nil
		case err := <-done:
			return err
		}
	},
}

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	return config.LoadWithEnv(configPath)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func buildSigner(cfg config.SignerConfig, log *slog.Logger) (signer.Signer, error) {
	if cfg.Ephemeral() {
		log.Warn("no CA material configured; generating ephemeral signing keys")
		return localsigner.Generate("Certward Ephemeral CA")
	}

	caCert, err := os.ReadFile(cfg.CACertPath)
	if err != nil {
		return nil, fmt.Errorf("reading CA certificate: %w", err)
	}
	caKey, err := os.ReadFile(cfg.CAKeyPath)
	if err != nil {
		return nil, fmt.Errorf("reading CA key: %w", err)
	}
	hostKey, err := os.ReadFile(cfg.SSHHostKeyPath)
	if err != nil {
		return nil, fmt.Errorf("reading SSH host CA key: %w", err)
	}
	userKey, err := os.ReadFile(cfg.SSHUserKeyPath)
	if err != nil {
		return nil, fmt.Errorf("reading SSH user CA key: %w", err)
	}
	return localsigner.New(caCert, caKey, hostKey, userKey)
}

// buildSecretsAccessor prefers holding the record store password in a
// sealed enclave for the lifetime of the process. The password comes
// from the CERTWARD_DB_PASSWORD environment variable (cleared after
// sealing) or from record_store.password_file. When neither is set the
// store falls back to reading plain environment variables on demand.
func buildSecretsAccessor(cfg config.RecordStoreConfig) (secrets.Accessor, error) {
	password := os.Getenv(dbPasswordEnv)
	if password != "" {
		os.Unsetenv(dbPasswordEnv)
	} else if cfg.PasswordFile != "" {
		data, err := os.ReadFile(cfg.PasswordFile)
		if err != nil {
			return nil, fmt.Errorf("reading record store password file: %w", err)
		}
		password = strings.TrimRight(string(data), "\r\n")
	}

	if password == "" {
		return secrets.EnvAccessor{Prefix: "CERTWARD"}, nil
	}

	accessor := secrets.NewEnclaveAccessor()
	accessor.Put(pgstore.PasswordSecret, []byte(password))
	return accessor, nil
}

func newRouter(cfg *config.Config, manager *instance.Manager, refresh, register *allowlist.List) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	r.Get("/status", statusHandler(cfg, manager, refresh, register))
	return r
}

// buildTLSConfig loads the configured certificate pair, or generates a
// self-signed certificate so the server always serves TLS.
func buildTLSConfig(cfg config.ServerConfig, log *slog.Logger) (*tls.Config, error) {
	if cfg.TLSCertPath != "" && cfg.TLSKeyPath != "" {
		cert, err := tls.LoadX509KeyPair(cfg.TLSCertPath, cfg.TLSKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load TLS key pair: %w", err)
		}
		return &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}, nil
	}

	cert, err := localsigner.GenerateSelfSignedTLS()
	if err != nil {
		return nil, fmt.Errorf("failed to generate self-signed certificate: %w", err)
	}
	log.Warn("no TLS pair configured; using self-signed runtime generated certificate")
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

func statusHandler(cfg *config.Config, manager *instance.Manager, refresh, register *allowlist.List) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"version":                   Version,
			"record_store":              cfg.RecordStore.Backend,
			"replay_protection":         manager.ReplayProtected(),
			"refresh_allowlist_blocks":  refresh.Len(),
			"register_allowlist_blocks": register.Len(),
		})
	}
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
}
