package places

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/phraser/location-server/internal/models"
	"github.com/phraser/location-server/internal/utils"
)

// Searcher is the external place-search collaborator. Nearest returns the
// closest candidate within radiusMeters of the point, or nil when no
// candidate qualifies (a normal outcome, not an error).
type Searcher interface {
	Nearest(ctx context.Context, lat, lng float64, radiusMeters int) (*models.Place, error)
}

// KakaoSearcher queries the Kakao local category-search API.
type KakaoSearcher struct {
	baseURL    string
	apiKey     string
	categories []string
	client     *http.Client
}

func NewKakaoSearcher(baseURL, apiKey string, categories []string, timeout time.Duration) *KakaoSearcher {
	return &KakaoSearcher{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		categories: categories,
		client:     &http.Client{Timeout: timeout},
	}
}

type kakaoDocument struct {
	PlaceName    string `json:"place_name"`
	CategoryName string `json:"category_name"`
	Distance     string `json:"distance"`
	AddressName  string `json:"address_name"`
	Phone        string `json:"phone"`
}

type kakaoResponse struct {
	Documents []kakaoDocument `json:"documents"`
}

func (k *KakaoSearcher) Nearest(ctx context.Context, lat, lng float64, radiusMeters int) (*models.Place, error) {
	const op = "KakaoSearcher.Nearest"

	q := url.Values{}
	q.Set("category_group_code", strings.Join(k.categories, ","))
	q.Set("x", strconv.FormatFloat(lng, 'f', -1, 64))
	q.Set("y", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("radius", strconv.Itoa(radiusMeters))
	q.Set("sort", "distance")

	endpoint := k.baseURL + "/v2/local/search/category.json?" + q.Encode()

	var out kakaoResponse
	if err := k.getJSON(ctx, endpoint, &out); err != nil {
		return nil, utils.E(utils.UpstreamCode(err), op, "place search failed", err)
	}

	if len(out.Documents) == 0 {
		return nil, nil
	}

	doc := out.Documents[0]
	dist, err := strconv.Atoi(doc.Distance)
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "unparsable distance in place search result", err)
	}
	if dist > radiusMeters {
		return nil, nil
	}

	return &models.Place{
		Name:             doc.PlaceName,
		Category:         doc.CategoryName,
		DistanceMeters:   dist,
		Address:          doc.AddressName,
		Phone:            doc.Phone,
		IsCustomLocation: false,
	}, nil
}

// getJSON performs the request with one retry on transport errors.
// HTTP-status failures are not retried.
func (k *KakaoSearcher) getJSON(ctx context.Context, endpoint string, dst any) error {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "KakaoAK "+k.apiKey)

		resp, err := k.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return fmt.Errorf("unexpected status %d", resp.StatusCode)
		}

		err = json.NewDecoder(resp.Body).Decode(dst)
		resp.Body.Close()
		return err
	}
	return lastErr
}
