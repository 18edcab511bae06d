package email

// Config holds billing notice delivery settings.
// Without Postmark tokens notices are written to DevDir, or dropped when
// DevDir is empty as well.
type Config struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"SENDER_EMAIL" envDefault:"billing@example.com"`
	SupportEmail         string `env:"SUPPORT_EMAIL" envDefault:"support@example.com"`
	DevDir               string `env:"EMAIL_DEV_DIR"`
	Language             string `env:"EMAIL_LANGUAGE" envDefault:"en"`
	ProductName          string `env:"EMAIL_PRODUCT_NAME" envDefault:"Billable"`
}

// PostmarkEnabled reports whether both Postmark tokens are configured.
func (c Config) PostmarkEnabled() bool {
	return c.PostmarkServerToken != "" && c.PostmarkAccountToken != ""
}
