package game

import "fmt"

// Generation bounds. Fewer than three characters cannot sustain a mystery;
// more than six overruns a model context with per-character prompts.
const (
	MinCharacters = 3
	MaxCharacters = 6
	MinNPCs       = 1
	MinActs       = 1
	MaxActs       = 10
)

// GenerationParams controls a world-generation run.
type GenerationParams struct {
	NumCharacters int     `json:"num_characters"`
	NumNPCs       int     `json:"num_npcs"`
	NumActs       int     `json:"num_acts"`
	Model         string  `json:"model,omitempty"`
	Temperature   float32 `json:"temperature"`
}

// DefaultGenerationParams returns the parameters used when a request omits
// them.
func DefaultGenerationParams() GenerationParams {
	return GenerationParams{
		NumCharacters: 4,
		NumNPCs:       3,
		NumActs:       3,
		Temperature:   0.7,
	}
}

func (p *GenerationParams) Validate() error {
	if p.NumCharacters < MinCharacters || p.NumCharacters > MaxCharacters {
		return fmt.Errorf("num_characters must be between %d and %d, got %d", MinCharacters, MaxCharacters, p.NumCharacters)
	}
	if p.NumNPCs < MinNPCs {
		return fmt.Errorf("num_npcs must be at least %d, got %d", MinNPCs, p.NumNPCs)
	}
	if p.NumActs < MinActs || p.NumActs > MaxActs {
		return fmt.Errorf("num_acts must be between %d and %d, got %d", MinActs, MaxActs, p.NumActs)
	}
	if p.Temperature < 0 || p.Temperature > 1 {
		return fmt.Errorf("temperature must be between 0 and 1, got %g", p.Temperature)
	}
	return nil
}
