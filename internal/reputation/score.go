// Package reputation пересчитывает оценку поставщика (gred) по отзывам в фоне.
package reputation

import "math"

// Sentiment эмоция отзыва и уверенность классификатора
type Sentiment struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// RawReview отзыв из внешнего источника
type RawReview struct {
	Rating    float64    `json:"rating"`
	Caption   string     `json:"caption"`
	Date      string     `json:"date"`
	Sentiment *Sentiment `json:"sentiment"`
}

// вес эмоции; неизвестная эмоция весит 0
var sentimentFactors = map[string]float64{
	"joy":      1.0,
	"love":     0.9,
	"surprise": 0.7,
	"neutral":  0.0,
	"sadness":  -0.6,
	"fear":     -0.8,
	"anger":    -0.9,
}

// Score среднее по отзывам. Отзыв без текста оценивается только по рейтингу.
// Отзыв с текстом, но без эмоции, обнуляет результат.
func Score(reviews []RawReview) float64 {
	if len(reviews) == 0 {
		return 0
	}

	var sum float64
	for _, r := range reviews {
		ratingPart := r.Rating / 5 * 100
		if r.Caption == "" {
			sum += ratingPart
			continue
		}
		if r.Sentiment == nil {
			return 0
		}
		factor := sentimentFactors[r.Sentiment.Label]
		sum += r.Sentiment.Score*100*factor*0.5 + ratingPart*0.5
	}
	return math.Round(sum/float64(len(reviews))*100) / 100
}
