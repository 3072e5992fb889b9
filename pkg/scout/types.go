package scout

import "time"

// Option configures a Scout.
type Option func(*OptionHolder)

// WithSheetID sets the Google Sheets spreadsheet ID.
func WithSheetID(id string) Option {
	return func(o *OptionHolder) {
		o.sheetID = id
	}
}

// WithWorksheet sets the worksheet (tab) name inside the spreadsheet.
func WithWorksheet(name string) Option {
	return func(o *OptionHolder) {
		o.worksheet = name
	}
}

// WithCredentialsFile sets the Google service-account credentials file.
func WithCredentialsFile(path string) Option {
	return func(o *OptionHolder) {
		o.credentialsFile = path
	}
}

// WithSQLite stores leads in a local SQLite sheet instead of Google Sheets.
func WithSQLite(path string) Option {
	return func(o *OptionHolder) {
		o.sqlitePath = path
	}
}

// WithSerperAPIKey sets the Serper search API key.
func WithSerperAPIKey(key string) Option {
	return func(o *OptionHolder) {
		o.serperAPIKey = key
	}
}

// WithSerperBaseURL points search at another endpoint.
func WithSerperBaseURL(u string) Option {
	return func(o *OptionHolder) {
		o.serperBaseURL = u
	}
}

// WithGeminiAPIKey sets the Gemini API key. Without one, Vertex AI is used.
func WithGeminiAPIKey(key string) Option {
	return func(o *OptionHolder) {
		o.geminiAPIKey = key
	}
}

// WithGeminiModel sets the Gemini model.
func WithGeminiModel(model string) Option {
	return func(o *OptionHolder) {
		o.geminiModel = model
	}
}

// WithGCPProject sets the GCP project ID for Vertex AI access.
func WithGCPProject(projectID string) Option {
	return func(o *OptionHolder) {
		o.gcpProject = projectID
	}
}

// WithCacheDir sets the directory for the persistent response cache.
func WithCacheDir(dir string) Option {
	return func(o *OptionHolder) {
		o.cacheDir = dir
	}
}

// WithNoCache disables response caching.
func WithNoCache() Option {
	return func(o *OptionHolder) {
		o.noCache = true
	}
}

// WithMemoryOnlyCache keeps the response cache in memory (for the server).
func WithMemoryOnlyCache() Option {
	return func(o *OptionHolder) {
		o.memoryOnlyCache = true
	}
}

// WithLimit caps the number of leads enriched per run.
func WithLimit(n int) Option {
	return func(o *OptionHolder) {
		o.limit = n
	}
}

// WithPace sets the pause between leads.
func WithPace(d time.Duration) Option {
	return func(o *OptionHolder) {
		o.pace = d
		o.paceSet = true
	}
}

// OptionHolder holds configuration options.
type OptionHolder struct {
	sheetID         string
	worksheet       string
	credentialsFile string
	sqlitePath      string
	serperAPIKey    string
	serperBaseURL   string
	geminiAPIKey    string
	geminiModel     string
	gcpProject      string
	cacheDir        string
	limit           int
	pace            time.Duration
	paceSet         bool
	noCache         bool
	memoryOnlyCache bool
}
