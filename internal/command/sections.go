package command

import (
	"sort"

	"github.com/bwmarrin/discordgo"

	"ddmbot/internal/config"
	"ddmbot/pkg/cmd"
)

// Entry is one invocable command or subcommand.
type Entry struct {
	Usage       string
	Description string
	Operator    bool
}

// Section groups the entries of one category.
type Section struct {
	Category string
	Entries  []Entry
}

// Sections lists registered commands grouped by category, ordered by
// config.CategoryWeights. Subcommands are listed individually.
func Sections(all []cmd.Command) []Section {
	byCat := make(map[string][]Entry)
	for _, c := range all {
		meta, ok := Meta(c)
		if !ok {
			continue
		}
		byCat[meta.Category()] = append(byCat[meta.Category()], entries(c, meta)...)
	}

	cats := make([]string, 0, len(byCat))
	for cat := range byCat {
		cats = append(cats, cat)
	}
	sort.Slice(cats, func(i, j int) bool {
		wi, wj := config.CategoryWeights[cats[i]], config.CategoryWeights[cats[j]]
		if wi != wj {
			return wi < wj
		}
		return cats[i] < cats[j]
	})

	out := make([]Section, 0, len(cats))
	for _, cat := range cats {
		out = append(out, Section{Category: cat, Entries: byCat[cat]})
	}
	return out
}

func entries(c cmd.Command, meta DiscordMeta) []Entry {
	var subs []*discordgo.ApplicationCommandOption
	if def := Definition(c); def != nil {
		for _, o := range def.Options {
			if o.Type == discordgo.ApplicationCommandOptionSubCommand {
				subs = append(subs, o)
			}
		}
	}
	if len(subs) == 0 {
		return []Entry{{Usage: "/" + c.Name(), Description: c.Description(), Operator: meta.RequiresOperator("")}}
	}

	out := make([]Entry, 0, len(subs))
	for _, s := range subs {
		out = append(out, Entry{
			Usage:       "/" + c.Name() + " " + s.Name,
			Description: s.Description,
			Operator:    meta.RequiresOperator(s.Name),
		})
	}
	return out
}
