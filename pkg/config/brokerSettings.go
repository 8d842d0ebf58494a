package config

// BrokerSettings holds configuration for connecting to a message broker.
type BrokerSettings struct {
	Type          string `mapstructure:"type" validate:"required,oneof=rabbitmq gcp-pubsub"`
	URL           string `mapstructure:"url"`
	Exchange      string `mapstructure:"exchange"`
	ProjectID     string `mapstructure:"project_id"` // Optional for brokers like GCP Pub/Sub
	ProposalQueue string `mapstructure:"proposal_queue"`
	CardQueue     string `mapstructure:"card_queue"`
}

// DbSettings selects and configures the persistence backend.
type DbSettings struct {
	Type string `mapstructure:"type" validate:"required,oneof=postgres mongo spanner"`
	DSN  string `mapstructure:"dsn"`  // postgres
	URI  string `mapstructure:"uri"`  // mongo connection string or spanner database path
	Name string `mapstructure:"name"` // mongo database name
}
