package benchmark

import (
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
)

// TokenCounter measures prompt length in model tokens
type TokenCounter interface {
	Count(text string) int
}

// avgTokensPerWord seeds the first guess before exact counting
const avgTokensPerWord = 1.3

var promptTemplates = []string{
	"Write a brief summary about {topic}.",
	"Explain the concept of {concept} in simple terms.",
	"What are the main differences between {thing1} and {thing2}?",
	"Generate a short story involving a {character} and a {setting}.",
}

var promptFillers = map[string][]string{
	"{topic}":     {"global warming", "quantum computing", "machine learning", "the industrial revolution"},
	"{concept}":   {"entropy", "blockchain", "evolution", "artificial intelligence"},
	"{thing1}":    {"cats", "democracy", "Python", "coffee"},
	"{thing2}":    {"dogs", "autocracy", "JavaScript", "tea"},
	"{character}": {"wizard", "detective", "astronaut", "pirate"},
	"{setting}":   {"on Mars", "in the deep ocean", "during the Renaissance", "in a parallel universe"},
}

var paddingWords = []string{
	"ancient", "bright", "calm", "distant", "eager", "fragile", "golden", "hollow",
	"icy", "jagged", "keen", "lively", "modest", "narrow", "orange", "patient",
	"quiet", "rapid", "silver", "tender", "urban", "vivid", "wooden", "young",
	"anchor", "bridge", "canyon", "desert", "engine", "forest", "garden", "harbor",
	"island", "journey", "kettle", "lantern", "meadow", "notebook", "orchard", "planet",
	"quarry", "river", "signal", "tower", "valley", "window", "yard", "zephyr",
}

// PromptGenerator produces prompts close to a target token count. Each call
// picks a fresh template or pads the configured one with random words, so
// responses are not served from a cache. Safe for concurrent use.
type PromptGenerator struct {
	counter  TokenCounter
	target   int
	template string

	mu  sync.Mutex
	rng *rand.Rand
}

// NewPromptGenerator creates a generator. An empty template selects the
// built-in ones. "{size}" in a custom template is replaced by the target.
func NewPromptGenerator(counter TokenCounter, targetTokens int, template string, seed uint64) *PromptGenerator {
	return &PromptGenerator{
		counter:  counter,
		target:   targetTokens,
		template: template,
		rng:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Next returns a new prompt of at most target tokens. The result is never
// shorter than its first word. Only random draws take the lock, so callers
// tokenize concurrently.
func (g *PromptGenerator) Next() string {
	words := g.start()
	if g.target <= 0 {
		return strings.Join(words, " ")
	}

	for g.counter.Count(strings.Join(words, " ")) < g.target {
		words = append(words, g.draw(1)...)
	}
	for len(words) > 1 && g.counter.Count(strings.Join(words, " ")) > g.target {
		words = words[:len(words)-1]
	}

	return strings.Join(words, " ")
}

// start picks the base prompt and pads it to the estimated word count
func (g *PromptGenerator) start() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	words := strings.Fields(g.base())
	if g.target <= 0 {
		return words
	}
	for guess := int(float64(g.target)/avgTokensPerWord) - len(words); guess > 0; guess-- {
		words = append(words, g.word())
	}
	return words
}

func (g *PromptGenerator) draw(n int) []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	words := make([]string, n)
	for i := range words {
		words[i] = g.word()
	}
	return words
}

// base and word must be called with mu held
func (g *PromptGenerator) base() string {
	if g.template != "" {
		return strings.ReplaceAll(g.template, "{size}", strconv.Itoa(g.target))
	}

	prompt := promptTemplates[g.rng.IntN(len(promptTemplates))]
	for slot, options := range promptFillers {
		if strings.Contains(prompt, slot) {
			prompt = strings.Replace(prompt, slot, options[g.rng.IntN(len(options))], 1)
		}
	}
	return prompt
}

func (g *PromptGenerator) word() string {
	return paddingWords[g.rng.IntN(len(paddingWords))]
}
