package oneinch

import (
	"encoding/json"
	"strings"
)

// QuoteResponse is the /quote payload.
type QuoteResponse struct {
	ToTokenAmount string          `json:"toTokenAmount"`
	EstimatedGas  json.Number     `json:"estimatedGas"`
	PriceImpact   json.Number     `json:"priceImpact"`
	Protocols     json.RawMessage `json:"protocols"`
}

// SwapResponse is the /swap payload.
type SwapResponse struct {
	ToTokenAmount string `json:"toTokenAmount"`
	Tx            SwapTx `json:"tx"`
}

// SwapTx is the ready-to-sign transaction.
type SwapTx struct {
	From     string      `json:"from"`
	To       string      `json:"to"`
	Data     string      `json:"data"`
	Value    string      `json:"value"`
	Gas      json.Number `json:"gas"`
	GasPrice string      `json:"gasPrice"`
}

// APIError is the error body the API returns on 4xx.
type APIError struct {
	StatusCode  int    `json:"statusCode"`
	Error       string `json:"error"`
	Description string `json:"description"`
}

type protocolPart struct {
	Name string `json:"name"`
}

// routeNames returns the protocol names of the first route. The API nests
// routes as route -> hop -> parts; older payloads drop the hop level.
func routeNames(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}

	var routes [][][]protocolPart
	if err := json.Unmarshal(raw, &routes); err == nil {
		if len(routes) == 0 {
			return nil
		}
		var names []string
		for _, hop := range routes[0] {
			for _, p := range hop {
				names = appendName(names, p.Name)
			}
		}
		return names
	}

	var flat [][]protocolPart
	if err := json.Unmarshal(raw, &flat); err != nil || len(flat) == 0 {
		return nil
	}
	var names []string
	for _, p := range flat[0] {
		names = appendName(names, p.Name)
	}
	return names
}

func appendName(names []string, name string) []string {
	name = strings.TrimSpace(name)
	if name == "" {
		return names
	}
	return append(names, name)
}
