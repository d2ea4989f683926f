package config

// Default paths for databases, relative to the project root
const (
	// DefaultCalibreDBPath is the default path for the Calibre metadata database
	DefaultCalibreDBPath = "data/calibre/metadata.db"

	// DefaultTalebookDBPath is the default path for the Talebook extension database
	DefaultTalebookDBPath = "data/talebook/calibre-webserver.db"
)

// ServerDirName is the subdirectory the backend is sometimes started from.
const ServerDirName = "server"
