package parser

import (
	"fmt"
	"regexp"
	"strings"
)

// SwapCommand is a parsed "<amount> <token> to <token>" request. Tokens are
// symbols, names or addresses, resolved later against the registry.
type SwapCommand struct {
	Amount string
	From   string
	To     string
}

// LiquidityCommand is a parsed "<amount> <token> + <amount> <token>" request
type LiquidityCommand struct {
	AmountA string
	TokenA  string
	AmountB string
	TokenB  string
}

const (
	amountPattern = `(\d+(?:\.\d*)?|\.\d+)`
	tokenPattern  = `(0x[0-9a-fA-F]{40}|[A-Za-z0-9_.()-]+)`
)

var (
	swapPattern      = regexp.MustCompile(`(?i)^` + amountPattern + `\s+` + tokenPattern + `\s+(?:to|for|->)\s+` + tokenPattern + `$`)
	liquidityPattern = regexp.MustCompile(`(?i)^` + amountPattern + `\s+` + tokenPattern + `\s*(?:\+|and)\s*` + amountPattern + `\s+` + tokenPattern + `$`)
)

// ParseSwapCommand parses a natural language swap command
// Examples:
//   - "swap 1 X1T to TKA"
//   - "1.5 TKA to TKB"
//   - "0.25 tka for 0x2C71ab7D51251BADaE2729E3F842c43fc6BB68c5"
func ParseSwapCommand(command string) (*SwapCommand, error) {
	command = normalize(command, "swap")

	matches := swapPattern.FindStringSubmatch(command)
	if matches == nil {
		return nil, fmt.Errorf("invalid swap command format. Expected: 'swap <amount> <token> to <token>' (e.g., 'swap 1 X1T to TKA')")
	}

	cmd := &SwapCommand{Amount: matches[1], From: matches[2], To: matches[3]}
	if strings.EqualFold(cmd.From, cmd.To) {
		return nil, fmt.Errorf("cannot swap %s to itself", cmd.From)
	}
	return cmd, nil
}

// ParseLiquidityCommand parses an add-liquidity command
// Examples:
//   - "1 X1T + 100 TKA"
//   - "add 5 TKA and 10 TKB"
func ParseLiquidityCommand(command string) (*LiquidityCommand, error) {
	command = normalize(command, "add")

	matches := liquidityPattern.FindStringSubmatch(command)
	if matches == nil {
		return nil, fmt.Errorf("invalid liquidity command format. Expected: '<amount> <token> + <amount> <token>' (e.g., '1 X1T + 100 TKA')")
	}

	cmd := &LiquidityCommand{AmountA: matches[1], TokenA: matches[2], AmountB: matches[3], TokenB: matches[4]}
	if strings.EqualFold(cmd.TokenA, cmd.TokenB) {
		return nil, fmt.Errorf("a pool needs two different tokens, got %s twice", cmd.TokenA)
	}
	return cmd, nil
}

// normalize trims the command, collapses whitespace and drops a leading verb
func normalize(command, verb string) string {
	command = strings.Join(strings.Fields(command), " ")
	if len(command) > len(verb) && strings.EqualFold(command[:len(verb)+1], verb+" ") {
		command = command[len(verb)+1:]
	}
	return command
}
