package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("NOTIFY_CHANNEL", "log")
	t.Setenv("INGEST_WORKERS", "3")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, ChannelLog, cfg.NotifyChannel)
	require.Equal(t, 3, cfg.IngestWorkers)
	require.Equal(t, 2, cfg.LateAfterDays)
	require.Equal(t, "0 0 * * *", cfg.BillingSchedule)

	loc, err := cfg.Location()
	require.NoError(t, err)
	require.Equal(t, "UTC", loc.String())
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			PostgresDB:      "ledgerd",
			PostgresHost:    "localhost",
			NotifyChannel:   ChannelSMS,
			IngestWorkers:   1,
			LateAfterDays:   2,
			BillingTimezone: "UTC",
		}
	}

	require.NoError(t, base().Validate())

	cfg := base()
	cfg.NotifyChannel = "pigeon"
	require.ErrorContains(t, cfg.Validate(), "NOTIFY_CHANNEL")

	cfg = base()
	cfg.NotifyChannel = ChannelTelegram
	require.ErrorContains(t, cfg.Validate(), "TELEGRAM_BOT_TOKEN")

	cfg = base()
	cfg.NotifyChannel = ChannelEmail
	require.ErrorContains(t, cfg.Validate(), "SMTP_SENDER")

	cfg = base()
	cfg.BillingTimezone = "Mars/Olympus"
	require.ErrorContains(t, cfg.Validate(), "BILLING_TIMEZONE")

	cfg = base()
	cfg.IngestWorkers = 0
	require.Error(t, cfg.Validate())
}

func TestEnvHelpersFallBackOnGarbage(t *testing.T) {
	t.Setenv("LEDGERD_TEST_INT", "twelve")
	t.Setenv("LEDGERD_TEST_BOOL", "maybe")

	require.Equal(t, 7, getEnvAsInt("LEDGERD_TEST_INT", 7))
	require.True(t, getEnvAsBool("LEDGERD_TEST_BOOL", true))
	require.Equal(t, "x", getEnv("LEDGERD_TEST_MISSING", "x"))
}
