package main

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// commandLexer tokenizes REPL input: identifiers, quoted strings,
// comments and whitespace are all a two-verb grammar needs.
var commandLexer = lexer.MustSimple([]lexer.Rule{
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
	{Name: "String", Pattern: `"(?:\\.|[^"])*"`},
	{Name: "comment", Pattern: `[#][^\n]*`},
	{Name: "whitespace", Pattern: `\s+`},
})

// Command is the parsed form of one REPL line: either "set key value"
// or "get key".
type Command struct {
	Set *SetCommand `@@`
	Get *GetCommand `| @@`
}

type SetCommand struct {
	Key   string `"set" @(Ident | String)`
	Value string `@(Ident | String)`
}

type GetCommand struct {
	Key string `"get" @(Ident | String)`
}

var commandParser = participle.MustBuild(&Command{},
	participle.Lexer(commandLexer),
	participle.Unquote("String"),
)

// ParseCommand parses a single REPL line into a Command.
func ParseCommand(line string) (*Command, error) {
	cmd := &Command{}
	if err := commandParser.ParseString("", line, cmd); err != nil {
		return nil, err
	}
	return cmd, nil
}
