package settings

// Setting keys read by the decision core and its collaborators
const (
	KeyAdminEmail             = "ADMIN_EMAIL"
	KeyTreasuryReserve        = "TREASURY_RESERVE_TWD"
	KeyMonthlyDebtCost        = "MONTHLY_DEBT_COST"
	KeyProxyPassword          = "PROXY_PASSWORD"
	KeyTunnelURL              = "TUNNEL_URL"
	KeyDiscordWebhookURL      = "DISCORD_WEBHOOK_URL"
	KeySchedulerMode          = "SCHEDULER_MODE"
	KeySchedulerEnabled       = "SCHEDULER_ENABLED"
	KeySchedulerIntervalHours = "SCHEDULER_INTERVAL_HOURS"
	KeySchedulerHour          = "SCHEDULER_HOUR"
	KeyBinanceAPIKey          = "BINANCE_API_KEY"
	KeyBinanceAPISecret       = "BINANCE_API_SECRET"
	KeyCMCAPIKey              = "CMC_API_KEY"
)

// SettingDefaults holds default values seeded on first start
var SettingDefaults = map[string]string{
	KeyTreasuryReserve:        "100000",
	KeyMonthlyDebtCost:        "12967",
	KeySchedulerMode:          "DAILY",
	KeySchedulerEnabled:       "true",
	KeySchedulerIntervalHours: "4",
	KeySchedulerHour:          "1",
}

// SettingDescriptions documents each known key
var SettingDescriptions = map[string]string{
	KeyAdminEmail:             "Recipient for email fallback notifications",
	KeyTreasuryReserve:        "Cash reserve in TWD kept outside every allocation layer",
	KeyMonthlyDebtCost:        "Recurring monthly debt service in TWD, drives survival runway",
	KeyProxyPassword:          "Shared secret for the command interface and the venue tunnel",
	KeyTunnelURL:              "Public base URL of the venue proxy tunnel",
	KeyDiscordWebhookURL:      "Discord webhook for alert delivery",
	KeySchedulerMode:          "DAILY or INTERVAL",
	KeySchedulerEnabled:       "Set to false to stop scheduled runs",
	KeySchedulerIntervalHours: "Hours between runs in INTERVAL mode",
	KeySchedulerHour:          "Hour of day for the run in DAILY mode",
	KeyBinanceAPIKey:          "Binance API key (read-only)",
	KeyBinanceAPISecret:       "Binance API secret",
	KeyCMCAPIKey:              "CoinMarketCap API key for the price fallback",
}

// secretKeys are masked when settings are listed
var secretKeys = map[string]bool{
	KeyProxyPassword:     true,
	KeyBinanceAPIKey:     true,
	KeyBinanceAPISecret:  true,
	KeyCMCAPIKey:         true,
	KeyDiscordWebhookURL: true,
}

// IsSecret reports whether a key holds a credential
func IsSecret(key string) bool {
	return secretKeys[key]
}

// Mask hides all but the last four characters of a secret
func Mask(value string) string {
	if len(value) <= 4 {
		return "****"
	}
	return "****" + value[len(value)-4:]
}
