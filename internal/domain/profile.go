package domain

// AgentProfile is the static configuration bundle that answers one category.
// Profiles are built once at startup and shared read-only across requests.
type AgentProfile struct {
	Category     Category
	Name         string
	Description  string
	Instructions string
	Links        []string
	Settings     ModelSettings
}

// ClassifierProfile configures the classifier stage.
type ClassifierProfile struct {
	Instructions string
	Settings     ModelSettings
}
