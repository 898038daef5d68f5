package domain

// ReviewArtifact bundles a finished review with the context the output
// writers need to name and render it.
type ReviewArtifact struct {
	OutputDir  string
	Repository string
	Target     string
	Provider   string
	Model      string
	Review     CanonicalReview
}
