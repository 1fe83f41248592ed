package data

import (
	_ "embed"
	"strings"
)

//go:embed prompt.txt
var systemPrompt string

// SystemPrompt is the fixed system turn of every chat completion.
var SystemPrompt = strings.TrimSpace(systemPrompt)

//go:embed index.html
var IndexHTML []byte
