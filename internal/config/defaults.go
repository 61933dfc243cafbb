package config

// DefaultAssetFiles is the evidence set shipped with the deck. Missing files
// are tolerated at load time, so the list can be broader than any one deploy.
var DefaultAssetFiles = []AssetFile{
	{ID: "cctv_inspection", Path: "cctv_inspection.csv"},
	{ID: "project_costs", Path: "project_costs.csv"},
	{ID: "bid_amounts", Path: "bid_amounts.csv"},
	{ID: "contractor_schedule", Path: "contractor_schedule.csv"},
	{ID: "references", Path: "references.json"},
	{ID: "evidence_log", Path: "Evidence_Log.xlsx"},
}

// DefaultInsightFamilies drive the offline heuristic answer. Each family maps
// question keywords to a canned insight about the deck's data.
var DefaultInsightFamilies = []InsightFamily{
	{
		Name:    "schedule",
		Terms:   []string{"schedule", "timeline", "deadline", "milestone", "when"},
		Insight: "The contractor schedule shows sequential phases; check the schedule rows above for start and end dates of each phase.",
	},
	{
		Name:    "defects",
		Terms:   []string{"defect", "severity", "crack", "inspection", "cctv", "condition"},
		Insight: "Inspection rows flag defects by severity; the highest-severity entries in the evidence above deserve attention first.",
	},
	{
		Name:    "bids",
		Terms:   []string{"bid", "contractor", "award", "proposal", "vendor"},
		Insight: "Bid amounts in the evidence can be compared directly; the spread between lowest and highest bid indicates negotiating room.",
	},
	{
		Name:    "budget",
		Terms:   []string{"budget", "cost", "variance", "overrun", "spend", "price"},
		Insight: "Project cost rows carry budgeted versus actual figures; variance between them shows where spending drifted.",
	},
}

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Assets.DataDir == "" && cfg.Assets.BaseURL == "" {
		cfg.Assets.DataDir = "./data"
	}
	if cfg.Assets.Files == nil {
		cfg.Assets.Files = DefaultAssetFiles
	}
	if cfg.Search.Backend == "" {
		cfg.Search.Backend = "memory"
	}
	if cfg.Search.DefaultLimit == 0 {
		cfg.Search.DefaultLimit = 6
	}
	if cfg.Search.MaxLimit == 0 {
		cfg.Search.MaxLimit = 50
	}
	if cfg.Prefs.DatabasePath == "" {
		cfg.Prefs.DatabasePath = "./agentlee.db"
	}
	if cfg.Models.Gemma.BaseURL == "" {
		cfg.Models.Gemma.BaseURL = "https://openrouter.ai/api/v1"
	}
	if cfg.Models.Gemma.Model == "" {
		cfg.Models.Gemma.Model = "google/gemma-3n-e2b-it:free"
	}
	if cfg.Models.Gemma.TimeoutSecs == 0 {
		cfg.Models.Gemma.TimeoutSecs = 30
	}
	if cfg.Models.Gemma.MaxRetries == 0 {
		cfg.Models.Gemma.MaxRetries = 3
	}
	if cfg.Models.LlamaEnabled == nil {
		t := true
		cfg.Models.LlamaEnabled = &t
	}
	if cfg.Models.Phi3Enabled == nil {
		t := true
		cfg.Models.Phi3Enabled = &t
	}
	if cfg.Answers.Families == nil {
		cfg.Answers.Families = DefaultInsightFamilies
	}
	if cfg.Answers.PreviewChars == 0 {
		cfg.Answers.PreviewChars = 800
	}
	if cfg.Speech.DefaultEngine == "" {
		cfg.Speech.DefaultEngine = "native"
	}
	if cfg.Speech.ProviderOrder == nil {
		cfg.Speech.ProviderOrder = []string{"azure", "gemini", "orpheus"}
	}
	if cfg.Speech.Native.Command == "" {
		cfg.Speech.Native.Command = "espeak"
	}
	if cfg.Speech.Native.MaxChunk == 0 {
		cfg.Speech.Native.MaxChunk = 280
	}
	if cfg.Speech.Native.StartGuardMS == 0 {
		cfg.Speech.Native.StartGuardMS = 1500
	}
	if cfg.Speech.Azure.Voice == "" {
		cfg.Speech.Azure.Voice = "en-US-JennyNeural"
	}
	if cfg.Speech.Azure.Style == "" {
		cfg.Speech.Azure.Style = "general"
	}
	if cfg.Speech.Azure.MaxChunk == 0 {
		cfg.Speech.Azure.MaxChunk = 2800
	}
	if cfg.Speech.Gemini.Model == "" {
		cfg.Speech.Gemini.Model = "gemini-2.5-flash-preview-tts"
	}
	if cfg.Speech.Gemini.Voice == "" {
		cfg.Speech.Gemini.Voice = "Kore"
	}
	if cfg.Speech.Gemini.MaxChunk == 0 {
		cfg.Speech.Gemini.MaxChunk = 2000
	}
	if cfg.Speech.Orpheus.Model == "" {
		cfg.Speech.Orpheus.Model = "canopylabs/orpheus-tts-0.1-finetune-prod"
	}
	if cfg.Speech.Orpheus.Voice == "" {
		cfg.Speech.Orpheus.Voice = "tara"
	}
	if cfg.Speech.Orpheus.MaxChunk == 0 {
		cfg.Speech.Orpheus.MaxChunk = 1500
	}
}
