package config

type StoreConfig struct {
	// DBPath is the path to the BoltDB file for snapshot persistence.
	// Default: "./data/quote-engine.db"
	DBPath string

	// SeedsPath points at an optional JSON file of pool and sale snapshots
	// loaded at boot. Empty disables seeding.
	SeedsPath string

	// PersistenceEnabled controls whether snapshots are persisted to disk.
	// Default: true
	PersistenceEnabled bool
}

func (c *StoreConfig) Load() error {
	c.DBPath = getEnvOrDefault("QUOTE_DB_PATH", "./data/quote-engine.db")
	c.SeedsPath = getEnvOrDefault("QUOTE_SEEDS_PATH", "")
	c.PersistenceEnabled = getEnvOrDefault("QUOTE_PERSISTENCE_ENABLED", "true") == "true"
	return nil
}

func (c *StoreConfig) Validate() error {
	return nil
}
