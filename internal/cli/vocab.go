package cli

import "tereo-quiz-service/internal/domain"

// starterWords seeds an empty vocabulary.
func starterWords() []domain.Word {
	return []domain.Word{
		{ID: "1", Maori: "kia ora", English: "hello"},
		{ID: "2", Maori: "aroha", English: "love"},
		{ID: "3", Maori: "whānau", English: "family"},
		{ID: "4", Maori: "kai", English: "food"},
		{ID: "5", Maori: "wai", English: "water"},
		{ID: "6", Maori: "whare", English: "house"},
		{ID: "7", Maori: "tamariki", English: "children"},
		{ID: "8", Maori: "maunga", English: "mountain"},
		{ID: "9", Maori: "moana", English: "sea"},
		{ID: "10", Maori: "rā", English: "sun"},
		{ID: "11", Maori: "marama", English: "moon"},
		{ID: "12", Maori: "whenua", English: "land"},
		{ID: "13", Maori: "tāne", English: "man"},
		{ID: "14", Maori: "wahine", English: "woman"},
		{ID: "15", Maori: "mahi", English: "work"},
		{ID: "16", Maori: "pukapuka", English: "book"},
	}
}
