package classify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// MLClient asks a remote model for a cookie category prediction. A nil
// return means no usable prediction; the cascade continues without ML
// evidence.
type MLClient interface {
	Predict(cookieName, cookieDomain string) *MLPrediction
}

type httpMLClient struct {
	endpoint string
	client   *http.Client
}

// NewMLClient builds the HTTP model client from classifier.ml settings, or
// returns nil when no endpoint is configured.
func NewMLClient() MLClient {
	endpoint := viper.GetString("classifier.ml.endpoint")
	if endpoint == "" {
		return nil
	}
	timeout := time.Duration(viper.GetInt("classifier.ml.timeout")) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &httpMLClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

func (c *httpMLClient) Predict(cookieName, cookieDomain string) *MLPrediction {
	payload, err := json.Marshal(map[string]string{
		"name":   cookieName,
		"domain": cookieDomain,
	})
	if err != nil {
		return nil
	}
	resp, err := c.client.Post(c.endpoint, "application/json", bytes.NewReader(payload))
	if err != nil {
		log.Debug().Err(err).Str("cookie", cookieName).Msg("ML prediction request failed")
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Debug().Str("cookie", cookieName).Str("status", fmt.Sprintf("%d", resp.StatusCode)).Msg("ML endpoint returned non-200")
		return nil
	}
	var prediction MLPrediction
	if err := json.NewDecoder(resp.Body).Decode(&prediction); err != nil {
		return nil
	}
	if prediction.Category == "" {
		return nil
	}
	return &prediction
}
