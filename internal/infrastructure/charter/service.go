package charter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ArkLabsHQ/oracle-node/internal/core/domain"
	"github.com/ArkLabsHQ/oracle-node/internal/core/ports"
	"github.com/ArkLabsHQ/oracle-node/utils"
	log "github.com/sirupsen/logrus"
)

const defaultRetryInterval = 5 * time.Second

type service struct {
	url           string
	client        *http.Client
	retryInterval time.Duration
}

// NewService returns a charter source reading the JSON document at url.
// A non-positive retryInterval selects the default one.
func NewService(url string, retryInterval time.Duration) ports.CharterService {
	if retryInterval <= 0 {
		retryInterval = defaultRetryInterval
	}
	return &service{
		url:           url,
		client:        &http.Client{Timeout: 10 * time.Second},
		retryInterval: retryInterval,
	}
}

func (s *service) Fetch(ctx context.Context) (*domain.Charter, error) {
	var charter *domain.Charter
	if err := utils.Retry(ctx, s.retryInterval, func(ctx context.Context) (bool, error) {
		c, err := s.fetch(ctx)
		if err != nil {
			log.WithError(err).Warnf("failed to fetch charter from %s, retrying...", s.url)
			return false, nil
		}
		charter = c
		return true, nil
	}); err != nil {
		return nil, err
	}
	return charter, nil
}

func (s *service) fetch(ctx context.Context) (*domain.Charter, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get charter: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var charter domain.Charter
	if err := json.NewDecoder(resp.Body).Decode(&charter); err != nil {
		return nil, fmt.Errorf("failed to parse charter: %w", err)
	}
	if len(charter.Nodes) <= 0 {
		return nil, fmt.Errorf("charter lists no oracle nodes")
	}
	return &charter, nil
}
