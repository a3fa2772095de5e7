package cfg

type Cfg struct {
	// Storage configuration
	DBPath string

	// Application configuration
	ConfigDir    string
	Port         string
	APIAccessKey string
	DiscordToken string

	// Poller configuration
	FloodCeiling int

	// Dispatcher configuration
	Concurrency       int
	MaxAttempts       int
	RatePerWindow     int
	RateWindowSeconds int
	GlobalRatePerSec  int
	FastTickMS        int
	SlowTickSeconds   int
	StaleAfterMinutes int
	RetentionHours    int

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
