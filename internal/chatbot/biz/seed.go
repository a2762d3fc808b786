package biz

import (
	"context"

	"github.com/kart-io/logger"

	"github.com/kenneth-kang/elementary-chatbot/internal/chatbot/store"
	"github.com/kenneth-kang/elementary-chatbot/internal/pkg/extract"
)

// starterMaterials are the built-in study materials ingested on first
// boot so the assistant can answer before any teacher uploads content.
var starterMaterials = []struct {
	text string
	meta store.Metadata
}{
	{
		text: "분수는 전체를 똑같이 나눈 것 중 일부를 나타내는 수예요. 예를 들어 피자 한 판을 4조각으로 똑같이 나누었을 때, 그 중 한 조각은 전체의 4분의 1이에요. 분수에서 아래에 있는 수를 분모, 위에 있는 수를 분자라고 불러요.",
		meta: store.Metadata{Source: "기본 학습자료", Subject: "수학", Grade: "3학년", Topic: "분수"},
	},
	{
		text: "곱셈은 같은 수를 여러 번 더하는 것을 간단하게 나타내는 방법이에요. 3 곱하기 4는 3을 4번 더한 것과 같아서 12가 돼요. 구구단을 외우면 곱셈을 빠르게 할 수 있어요.",
		meta: store.Metadata{Source: "기본 학습자료", Subject: "수학", Grade: "2학년", Topic: "곱셈"},
	},
	{
		text: "광합성은 식물이 햇빛을 받아 스스로 양분을 만드는 과정이에요. 식물은 잎의 엽록체에서 물과 이산화탄소를 이용해 포도당을 만들고, 이때 산소를 내보내요. 그래서 숲에 가면 공기가 맑게 느껴져요.",
		meta: store.Metadata{Source: "기본 학습자료", Subject: "과학", Grade: "5학년", Topic: "광합성"},
	},
}

// SeedMaterials ingests the starter materials when the store is empty.
// Idempotent across restarts.
func (r *Retrieval) SeedMaterials(ctx context.Context) error {
	stats, err := r.Stats(ctx)
	if err != nil {
		return err
	}
	if stats.TotalDocuments > 0 {
		return nil
	}

	for _, material := range starterMaterials {
		if _, err := r.Ingest(ctx, []byte(material.text), extract.KindText, material.meta); err != nil {
			return err
		}
	}

	logger.Infow("starter materials seeded", "count", len(starterMaterials))
	return nil
}
