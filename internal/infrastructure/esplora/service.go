package esplora

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ArkLabsHQ/oracle-node/internal/core/ports"
)

type service struct {
	baseURL string
	client  *http.Client
}

// NewService returns an explorer backed by the Esplora REST API at url.
func NewService(url string) ports.ExplorerService {
	return &service{
		baseURL: url,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *service) GetUtxos(ctx context.Context, address string) ([]ports.Utxo, error) {
	url := strings.TrimRight(s.baseURL, "/") + "/address/" + address + "/utxo"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get address utxos: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var utxos []struct {
		Txid  string `json:"txid"`
		Vout  uint32 `json:"vout"`
		Value int64  `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&utxos); err != nil {
		return nil, fmt.Errorf("failed to parse utxos: %w", err)
	}

	items := make([]ports.Utxo, 0, len(utxos))
	for _, u := range utxos {
		items = append(items, ports.Utxo{
			Txid:   u.Txid,
			Vout:   u.Vout,
			Amount: u.Value,
		})
	}
	return items, nil
}
