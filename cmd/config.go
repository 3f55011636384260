package cmd

import (
	"fmt"
	"os"
	"strings"

	"records-migrate/internal/dialect"
	"records-migrate/internal/engine"
	"records-migrate/internal/script"
	"records-migrate/internal/store"

	"github.com/spf13/viper"
)

// Endpoint keys, relative to "source." or "destination.".
const (
	keyDriver                 = "driver"
	keyDSN                    = "dsn"
	keyHost                   = "host"
	keyPort                   = "port"
	keyDatabase               = "database"
	keyUser                   = "user"
	keyPassword               = "password"
	keyEncrypt                = "encrypt"
	keyTrustServerCertificate = "trust_server_certificate"
	keyConnectTimeout         = "connect_timeout"
)

func setDefaults() {
	for _, endpoint := range []string{store.Source, store.Destination} {
		viper.SetDefault(endpoint+"."+keyDriver, "sqlserver")
		viper.SetDefault(endpoint+"."+keyHost, "localhost")
		viper.SetDefault(endpoint+"."+keyEncrypt, false)
		viper.SetDefault(endpoint+"."+keyTrustServerCertificate, false)
		viper.SetDefault(endpoint+"."+keyConnectTimeout, dialect.DefaultConnectTimeout)
	}
	// The cloud destination is encrypted unless configured otherwise.
	viper.SetDefault("destination."+keyEncrypt, true)

	viper.SetDefault("migration.schema_script", "sql/create_tables.sql")
	viper.SetDefault("migration.view_script", "sql/view.sql")
	viper.SetDefault("migration.marker", script.DefaultMarker)
	viper.SetDefault("migration.tables", []string{"students", "courses", "enrollments", "grades", "attendance"})
	viper.SetDefault("migration.views", []string{})
	viper.SetDefault("migration.schema", "")
	viper.SetDefault("migration.cleanup", string(engine.CleanupNone))
	viper.SetDefault("migration.row_failure_policy", string(engine.FailFast))
	viper.SetDefault("migration.strict_verify", true)

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "auto")
}

// bindLegacyEnv maps the DB_* variables of the loading scripts onto the destination.
func bindLegacyEnv() {
	legacy := map[string]string{
		keyHost:     "DB_HOST",
		keyPort:     "DB_PORT",
		keyDatabase: "DB_NAME",
		keyUser:     "DB_USER",
		keyPassword: "DB_PASS",
	}
	for key, env := range legacy {
		full := "destination." + key
		viper.BindEnv(full, strings.ToUpper(strings.ReplaceAll(full, ".", "_")), env)
	}
}

// endpointConfig reads the connection parameters of source or destination.
func endpointConfig(endpoint string) (dialect.ConnConfig, error) {
	key := func(k string) string { return endpoint + "." + k }

	cfg := dialect.ConnConfig{
		Driver:                 strings.ToLower(viper.GetString(key(keyDriver))),
		DSN:                    viper.GetString(key(keyDSN)),
		Host:                   viper.GetString(key(keyHost)),
		Port:                   viper.GetInt(key(keyPort)),
		Database:               viper.GetString(key(keyDatabase)),
		User:                   viper.GetString(key(keyUser)),
		Password:               viper.GetString(key(keyPassword)),
		Encrypt:                viper.GetBool(key(keyEncrypt)),
		TrustServerCertificate: viper.GetBool(key(keyTrustServerCertificate)),
		ConnectTimeout:         viper.GetInt(key(keyConnectTimeout)),
	}

	if cfg.Driver == "" {
		return cfg, fmt.Errorf("%s: driver is required", endpoint)
	}
	if _, err := dialect.GetDialect(cfg.Driver); err != nil {
		return cfg, fmt.Errorf("%s: %w", endpoint, err)
	}
	if cfg.DSN == "" && cfg.Database == "" {
		return cfg, fmt.Errorf("%s: database (or dsn) is required", endpoint)
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return cfg, fmt.Errorf("%s: invalid port %d", endpoint, cfg.Port)
	}
	return cfg, nil
}

// MigrationConfig is the "migration" section of the configuration.
type MigrationConfig struct {
	SchemaScript string
	ViewScript   string
	Marker       string
	Tables       []string
	Views        []string
	SchemaName   string
	Cleanup      engine.CleanupMode
	Policy       engine.FailurePolicy
	StrictVerify bool
}

func migrationConfig() (MigrationConfig, error) {
	m := MigrationConfig{
		SchemaScript: viper.GetString("migration.schema_script"),
		ViewScript:   viper.GetString("migration.view_script"),
		Marker:       viper.GetString("migration.marker"),
		Tables:       viper.GetStringSlice("migration.tables"),
		Views:        viper.GetStringSlice("migration.views"),
		SchemaName:   viper.GetString("migration.schema"),
		StrictVerify: viper.GetBool("migration.strict_verify"),
	}
	var err error
	if m.Cleanup, err = engine.ParseCleanupMode(viper.GetString("migration.cleanup")); err != nil {
		return m, err
	}
	if m.Policy, err = engine.ParsePolicy(viper.GetString("migration.row_failure_policy")); err != nil {
		return m, err
	}
	if strings.TrimSpace(m.Marker) == "" {
		m.Marker = script.DefaultMarker
	}
	return m, nil
}

// Plan reads the scripts and builds the engine plan. A script path left
// empty is skipped.
func (m MigrationConfig) Plan() (engine.Plan, error) {
	p := engine.Plan{
		Tables:     m.Tables,
		Views:      m.Views,
		SchemaName: m.SchemaName,
		Marker:     m.Marker,
		Cleanup:    m.Cleanup,
		Policy:     m.Policy,
	}
	var err error
	if p.SchemaScript, err = readScript(m.SchemaScript); err != nil {
		return p, err
	}
	if p.ViewScript, err = readScript(m.ViewScript); err != nil {
		return p, err
	}
	return p, nil
}

func readScript(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read script: %w", err)
	}
	return string(b), nil
}

// newOrchestrator builds an orchestrator from the current configuration.
func newOrchestrator() (*engine.Orchestrator, MigrationConfig, error) {
	src, err := endpointConfig(store.Source)
	if err != nil {
		return nil, MigrationConfig{}, err
	}
	dst, err := endpointConfig(store.Destination)
	if err != nil {
		return nil, MigrationConfig{}, err
	}
	mc, err := migrationConfig()
	if err != nil {
		return nil, mc, err
	}
	plan, err := mc.Plan()
	if err != nil {
		return nil, mc, err
	}
	return &engine.Orchestrator{Source: src, Destination: dst, Plan: plan, Log: Log}, mc, nil
}
