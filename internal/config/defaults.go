package config

const (
	defaultRomsDir           = "~/roms"
	defaultCacheDir          = "~/.local/share/artie/cache"
	defaultLogDir            = "~/.local/share/artie/logs"
	defaultHintDBPath        = "~/.local/share/artie/hints.db"
	defaultCatalogBaseURL    = "https://api.screenscraper.fr/api2"
	defaultSoftname          = "artie"
	defaultRequestTimeout    = 30
	defaultMaxRetries        = 3
	defaultRequestsPerMinute = 60
	defaultBurst             = 5
	defaultWorkers           = 2
	defaultFuzzyThreshold    = 0.5
	defaultMaskOpacity       = 1.0
	defaultMaskBlendMode     = "overlay"
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
)

func defaultMediaKinds() []string {
	return []string{"box-2D", "screenshot", "synopsis-text"}
}

func defaultRegions() []string {
	return []string{"us", "eu", "jp", "wor"}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			RomsDir:    defaultRomsDir,
			CacheDir:   defaultCacheDir,
			LogDir:     defaultLogDir,
			HintDBPath: defaultHintDBPath,
		},
		Catalog: Catalog{
			BaseURL:        defaultCatalogBaseURL,
			Softname:       defaultSoftname,
			Regions:        defaultRegions(),
			RequestTimeout: defaultRequestTimeout,
			MaxRetries:     defaultMaxRetries,
		},
		RateLimit: RateLimit{
			RequestsPerMinute: defaultRequestsPerMinute,
			Burst:             defaultBurst,
		},
		Scraper: Scraper{
			Workers:        defaultWorkers,
			MediaKinds:     defaultMediaKinds(),
			FuzzyThreshold: defaultFuzzyThreshold,
		},
		Mask: Mask{
			Apply: false,
			Settings: MaskSettings{
				Opacity:   defaultMaskOpacity,
				BlendMode: defaultMaskBlendMode,
			},
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
