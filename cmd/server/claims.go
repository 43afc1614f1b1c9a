package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"hexstride.io/internal/transport/ws"
)

type tokensFile struct {
	Tokens map[string]string `yaml:"tokens"`
}

// claimsFor picks the HELLO token resolver. Deployed servers require
// <configs>/tokens.yaml; local runs fall back to trusting the token.
func claimsFor(configDir string) (ws.ClaimsProvider, error) {
	path := strings.TrimSpace(os.Getenv("HS_TOKENS_FILE"))
	if path == "" {
		path = filepath.Join(configDir, "tokens.yaml")
	}
	claims, err := loadStaticClaims(path)
	if err == nil {
		return claims, nil
	}
	if os.IsNotExist(err) && !isDeployed() {
		return ws.DevClaims{}, nil
	}
	return nil, err
}

func loadStaticClaims(path string) (ws.StaticClaims, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f tokensFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("tokens.yaml: %w", err)
	}
	out := ws.StaticClaims{}
	for tok, player := range f.Tokens {
		tok, player = strings.TrimSpace(tok), strings.TrimSpace(player)
		if tok == "" || player == "" {
			return nil, fmt.Errorf("tokens.yaml: empty token or player id")
		}
		out[tok] = player
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("tokens.yaml: no tokens")
	}
	return out, nil
}
