package domain

// GenerationStrategy is the method used to produce response text.
type GenerationStrategy string

const (
	StrategyRuleBased        GenerationStrategy = "rule_based"
	StrategyRetrieval        GenerationStrategy = "retrieval"
	StrategyHybrid           GenerationStrategy = "hybrid"
	StrategyTemplateFallback GenerationStrategy = "template_fallback"
)
