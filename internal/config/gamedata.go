package config

import "github.com/example/nihongoquest/pkg/models"

// Reward keys of the XP table
const (
	RewardLessonComplete    = "lesson_complete"
	RewardMinigameComplete  = "minigame_complete"
	RewardMinigamePerfect   = "minigame_perfect"
	RewardCharacterMastered = "character_mastered"
	RewardWordMastered      = "word_mastered"
	RewardGrammarMastered   = "grammar_mastered"
	RewardMonumentComplete  = "monument_complete"
	RewardDailyStreakBonus  = "daily_streak_bonus"
	RewardFirstTryCorrect   = "first_try_correct"
	RewardReviewComplete    = "review_complete"
)

// DifficultyProfile tunes scoring and SRS pacing for one difficulty
type DifficultyProfile struct {
	Label       string
	LabelJP     string
	Description string
	// Applied to timed challenges
	TimerMultiplier float64
	HintCount       int
	// Scales SRS review intervals; larger means reviews come less often
	SRSIntervalMultiplier float64
	XPMultiplier          float64
	MinigameLives         int
	ShowRomaji            bool
	ShowFurigana          bool
	// Consecutive correct answers needed to advance one mastery stage
	ConsecutiveCorrectToMaster int
}

// LevelingConfig describes the XP curve
type LevelingConfig struct {
	BaseXP   float64
	Growth   float64
	MaxLevel int
}

// GameData is the static reference data the progression core reads
type GameData struct {
	Monuments    []models.Monument
	Difficulties map[models.Difficulty]DifficultyProfile
	XPRewards    map[string]int
	// Hours until the next review after reaching a stage
	SRSIntervalHours map[models.MasteryStage]float64
	Leveling         LevelingConfig

	ExpectedLessonsPerMonument   int
	ExpectedMinigamesPerMonument int
	// Expected number of mastered items per monument category
	ExpectedMastery        map[string]int
	DefaultExpectedMastery int
}

// TotalMonuments returns the number of monuments
func (g *GameData) TotalMonuments() int {
	return len(g.Monuments)
}

// Monument returns the monument with the given id
func (g *GameData) Monument(id int) (models.Monument, bool) {
	if id < 0 || id >= len(g.Monuments) {
		return models.Monument{}, false
	}
	return g.Monuments[id], true
}

// Difficulty returns the profile for d, falling back to the default difficulty
func (g *GameData) Difficulty(d models.Difficulty) DifficultyProfile {
	if p, ok := g.Difficulties[d]; ok {
		return p
	}
	return g.Difficulties[models.DefaultDifficulty]
}

// ExpectedMasteryCount returns how many mastered items complete a category
func (g *GameData) ExpectedMasteryCount(category string) int {
	if n, ok := g.ExpectedMastery[category]; ok {
		return n
	}
	return g.DefaultExpectedMastery
}

// DefaultGameData returns the shipped monuments, presets and tables
func DefaultGameData() *GameData {
	return &GameData{
		Monuments: []models.Monument{
			{ID: 0, Name: "Hiragana Temple", NameJP: "ひらがな寺",
				Description: "The foundation of Japanese writing. Master the 46 basic hiragana characters.",
				Category:    "hiragana"},
			{ID: 1, Name: "Katakana Shrine", NameJP: "カタカナ神社",
				Description: "Learn katakana, used for foreign words and emphasis.",
				Category:    "katakana", UnlockRequires: "hiragana"},
			{ID: 2, Name: "Grammar Garden", NameJP: "文法庭園",
				Description: "Discover basic Japanese sentence structures and particles.",
				Category:    "grammar_basic", UnlockRequires: "katakana"},
			{ID: 3, Name: "Vocabulary Village", NameJP: "語彙の村",
				Description: "Build your first 200 essential Japanese words.",
				Category:    "vocabulary_basic", UnlockRequires: "grammar_basic"},
			{ID: 4, Name: "Verb Dojo", NameJP: "動詞道場",
				Description: "Master verb conjugations: masu, te-form, past tense, and more.",
				Category:    "verbs", UnlockRequires: "vocabulary_basic"},
			{ID: 5, Name: "Kanji Castle N5", NameJP: "漢字城 N5",
				Description: "Learn the ~100 kanji required for JLPT N5.",
				Category:    "kanji_n5", UnlockRequires: "verbs"},
			{ID: 6, Name: "Listening Lake", NameJP: "聴解の湖",
				Description: "Train your ear with native-speed listening exercises.",
				Category:    "listening", UnlockRequires: "kanji_n5"},
			{ID: 7, Name: "Grammar Grove", NameJP: "文法の森",
				Description: "Intermediate grammar: conditionals, passive, causative.",
				Category:    "grammar_intermediate", UnlockRequires: "listening"},
			{ID: 8, Name: "Kanji Keep N4/N3", NameJP: "漢字砦 N4/N3",
				Description: "Conquer ~350 intermediate kanji for JLPT N4 and N3.",
				Category:    "kanji_intermediate", UnlockRequires: "grammar_intermediate"},
			{ID: 9, Name: "Reading Realm", NameJP: "読解の国",
				Description: "Practice reading passages, short stories, and articles.",
				Category:    "reading", UnlockRequires: "kanji_intermediate"},
			{ID: 10, Name: "Conversation Court", NameJP: "会話の宮廷",
				Description: "Role-play real-life conversations and dialogues.",
				Category:    "conversation", UnlockRequires: "reading"},
			{ID: 11, Name: "Advanced Academy", NameJP: "上級学院",
				Description: "Advanced grammar, nuance, and keigo (polite language).",
				Category:    "advanced", UnlockRequires: "conversation"},
			{ID: 12, Name: "Immersion Island", NameJP: "没入島",
				Description: "Full-immersion challenges: no English, only Japanese.",
				Category:    "immersion", UnlockRequires: "advanced"},
		},
		Difficulties: map[models.Difficulty]DifficultyProfile{
			models.DifficultyEasy: {
				Label: "Easy", LabelJP: "やさしい",
				Description:                "Relaxed pace with extra hints. Great for absolute beginners.",
				TimerMultiplier:            1.5,
				HintCount:                  3,
				SRSIntervalMultiplier:      0.8,
				XPMultiplier:               0.8,
				MinigameLives:              5,
				ShowRomaji:                 true,
				ShowFurigana:               true,
				ConsecutiveCorrectToMaster: 6,
			},
			models.DifficultyNormal: {
				Label: "Normal", LabelJP: "ふつう",
				Description:                "Balanced challenge for steady learners.",
				TimerMultiplier:            1.0,
				HintCount:                  2,
				SRSIntervalMultiplier:      1.0,
				XPMultiplier:               1.0,
				MinigameLives:              3,
				ShowFurigana:               true,
				ConsecutiveCorrectToMaster: 5,
			},
			models.DifficultyHard: {
				Label: "Hard", LabelJP: "むずかしい",
				Description:                "Minimal assistance. Prove your Japanese mastery.",
				TimerMultiplier:            0.75,
				HintCount:                  1,
				SRSIntervalMultiplier:      1.3,
				XPMultiplier:               1.3,
				MinigameLives:              2,
				ConsecutiveCorrectToMaster: 4,
			},
			models.DifficultyExtreme: {
				Label: "Extreme", LabelJP: "鬼",
				Description:                "No hints. Strict timing. Only for the fearless.",
				TimerMultiplier:            0.5,
				HintCount:                  0,
				SRSIntervalMultiplier:      1.6,
				XPMultiplier:               1.8,
				MinigameLives:              1,
				ConsecutiveCorrectToMaster: 3,
			},
		},
		XPRewards: map[string]int{
			RewardLessonComplete:    50,
			RewardMinigameComplete:  80,
			RewardMinigamePerfect:   150,
			RewardCharacterMastered: 20,
			RewardWordMastered:      25,
			RewardGrammarMastered:   40,
			RewardMonumentComplete:  500,
			RewardDailyStreakBonus:  30,
			RewardFirstTryCorrect:   15,
			RewardReviewComplete:    25,
		},
		SRSIntervalHours: map[models.MasteryStage]float64{
			models.StageNew:      0,
			models.StageLearning: 4,
			models.StageReview:   24,
			models.StageMastered: 168,
		},
		Leveling: LevelingConfig{
			BaseXP:   100,
			Growth:   1.15,
			MaxLevel: 100,
		},
		ExpectedLessonsPerMonument:   5,
		ExpectedMinigamesPerMonument: 3,
		ExpectedMastery: map[string]int{
			"hiragana":             46,
			"katakana":             46,
			"grammar_basic":        20,
			"vocabulary_basic":     200,
			"verbs":                50,
			"kanji_n5":             100,
			"listening":            30,
			"grammar_intermediate": 40,
			"kanji_intermediate":   350,
			"reading":              25,
			"conversation":         20,
			"advanced":             60,
			"immersion":            30,
		},
		DefaultExpectedMastery: 30,
	}
}
