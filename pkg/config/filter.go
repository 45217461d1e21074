package config

type FilterConfiguration struct {
	// Ignore holds expressions evaluated per file, a match excludes the file from the run.
	Ignore []string `koanf:"ignore"`
}
