package config

// Config is the root configuration of the indexing engine.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Import   ImportConfig   `yaml:"import"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Wordlist WordlistConfig `yaml:"wordlist"`
	Lexeme   LexemeConfig   `yaml:"lexeme"`
	Log      LogConfig      `yaml:"log"`
}

// DatabaseConfig holds the embedded store settings.
type DatabaseConfig struct {
	Path string `yaml:"path" env:"LEXINDEX_DB_PATH" env-default:"lexindex.db"`
}

// ImportConfig controls reference dictionary import.
type ImportConfig struct {
	BatchSize       int  `yaml:"batch_size"        env:"LEXINDEX_IMPORT_BATCH_SIZE"        env-default:"1000"`
	SkipProperNouns bool `yaml:"skip_proper_nouns" env:"LEXINDEX_IMPORT_SKIP_PROPER_NOUNS" env-default:"true"`
	MaxWords        int  `yaml:"max_words"         env:"LEXINDEX_IMPORT_MAX_WORDS"         env-default:"0"`
}

// IngestConfig controls document ingestion.
type IngestConfig struct {
	Workers       int `yaml:"workers"        env:"LEXINDEX_INGEST_WORKERS"        env-default:"4"`
	BatchSize     int `yaml:"batch_size"     env:"LEXINDEX_INGEST_BATCH_SIZE"     env-default:"50"`
	ContextWindow int `yaml:"context_window" env:"LEXINDEX_INGEST_CONTEXT_WINDOW" env-default:"3"`
}

// WordlistConfig bounds accepted wordlist entries.
type WordlistConfig struct {
	MinLength int `yaml:"min_length" env:"LEXINDEX_WORDLIST_MIN_LENGTH" env-default:"2"`
	MaxLength int `yaml:"max_length" env:"LEXINDEX_WORDLIST_MAX_LENGTH" env-default:"50"`
}

// LexemeConfig selects the lemmatizer and language.
type LexemeConfig struct {
	Stemmer  string `yaml:"stemmer"  env:"LEXINDEX_STEMMER"  env-default:"snowball"`
	Language string `yaml:"language" env:"LEXINDEX_LANGUAGE" env-default:"en"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Mode  string `yaml:"mode"  env:"LEXINDEX_LOG_MODE"  env-default:"dev"`
	Level string `yaml:"level" env:"LEXINDEX_LOG_LEVEL" env-default:"info"`
}
