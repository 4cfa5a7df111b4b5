package discord

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"slices"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// commandShape is the part of a command definition Discord keeps. IDs and
// versions assigned by Discord are left out so local and remote definitions
// hash the same.
type commandShape struct {
	Name        string                           `json:"name"`
	Description string                           `json:"description"`
	Type        discordgo.ApplicationCommandType `json:"type"`
	Options     []optionShape                    `json:"options,omitempty"`
}

type optionShape struct {
	Name        string                                 `json:"name"`
	Description string                                 `json:"description"`
	Type        discordgo.ApplicationCommandOptionType `json:"type"`
	Required    bool                                   `json:"required"`
	MinValue    *float64                               `json:"min_value,omitempty"`
	MaxValue    float64                                `json:"max_value,omitempty"`
	MinLength   *int                                   `json:"min_length,omitempty"`
	MaxLength   int                                    `json:"max_length,omitempty"`
	Choices     []choiceShape                          `json:"choices,omitempty"`
	Options     []optionShape                          `json:"options,omitempty"`
}

type choiceShape struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// hashCommand fingerprints a definition so unchanged commands are not
// registered again on every start.
func hashCommand(c *discordgo.ApplicationCommand) string {
	shape := commandShape{
		Name:        c.Name,
		Description: c.Description,
		Type:        c.Type,
		Options:     shapeOptions(c.Options),
	}
	data, _ := json.Marshal(shape)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func shapeOptions(opts []*discordgo.ApplicationCommandOption) []optionShape {
	if len(opts) == 0 {
		return nil
	}
	out := make([]optionShape, 0, len(opts))
	for _, o := range opts {
		s := optionShape{
			Name:        o.Name,
			Description: o.Description,
			Type:        o.Type,
			Required:    o.Required,
			MinValue:    o.MinValue,
			MaxValue:    o.MaxValue,
			MinLength:   o.MinLength,
			MaxLength:   o.MaxLength,
			Options:     shapeOptions(o.Options),
		}
		for _, ch := range o.Choices {
			s.Choices = append(s.Choices, choiceShape{Name: ch.Name, Value: ch.Value})
		}
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b optionShape) int { return strings.Compare(a.Name, b.Name) })
	return out
}
