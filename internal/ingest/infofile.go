package ingest

import (
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// ProductInfo is the parsed metadata of one product folder.
type ProductInfo struct {
	ID          string
	Description string
	Price       float64
	Category    string
	Color       string
}

// parseInfoFile reads the "Key: Value" info file next to a product's
// images. Unknown keys are ignored. Price cleanup: commas and currency
// symbols stripped, the placeholder "SALE PRICE" and unparsable values
// fall back to 0.
func parseInfoFile(path string) (ProductInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ProductInfo{}, err
	}

	var info ProductInfo
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !strings.Contains(line, ":") {
			continue
		}
		key, value, _ := strings.Cut(line, ":")
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "description":
			info.Description = value
		case "id":
			info.ID = value
		case "category":
			info.Category = value
		case "color":
			info.Color = value
		case "price":
			info.Price = parsePrice(value, path)
		}
	}
	return info, nil
}

func parsePrice(value, path string) float64 {
	clean := strings.TrimSpace(strings.NewReplacer(",", "", "$", "").Replace(value))
	if strings.EqualFold(clean, "SALE PRICE") {
		log.Info().Str("file", path).Msg("price marked as 'SALE PRICE', defaulting to 0")
		return 0
	}
	price, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		log.Warn().Str("file", path).Str("value", value).Msg("could not parse price, defaulting to 0")
		return 0
	}
	return price
}
