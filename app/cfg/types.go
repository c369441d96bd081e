package cfg

const (
	CommandAnalyze  = "analyze"
	CommandDedupe   = "dedupe"
	CommandValidate = "validate"
	CommandReport   = "report"
	CommandServe    = "serve"
)

type Cfg struct {
	Command string

	// Command arguments
	InputFile     string
	OutputFile    string
	Timeout       int // seconds, per request attempt
	ValidateFeeds bool

	// Service configuration
	SourcesDir        string
	DBPath            string
	Port              string
	BaseUrl           string
	WorkerCount       int
	SchedulerInterval int
	APIAccessKey      string

	// Application metadata
	Concurrency int
	UserAgent   string
	Timezone    string
	Debug       bool
	Version     string
}
