package config

// ///////////////////////////////////////////////
// Documentation Types
// ///////////////////////////////////////////////

// FieldDoc holds documentation and alternative examples for a single config field.
// The genconfig tool uses [FieldDoc] values to annotate the generated config.default.toml.
type FieldDoc struct {
	// Comment is shown as a header comment above the field in the example config.
	Comment string

	// Alternatives are shown as commented-out lines below the active value.
	Alternatives []string
}

// ///////////////////////////////////////////////
// Field Documentation Map
// ///////////////////////////////////////////////

// ConfigDocs maps TOML field paths (dot-separated, e.g. "render.max_width")
// to their [FieldDoc] entries.
var ConfigDocs = map[string]FieldDoc{
	"version": {
		Comment: "Config schema version. Do not edit.",
	},

	// ── Generation ───────────────────────────────────────────────
	"generation.seed": {
		Comment: "Base random seed. Worker i is seeded with seed + i, so generation order\nis reproducible per worker but not across the whole run.",
	},
	"generation.max_attempts": {
		Comment: "Primary render attempts per (word, font) item before falling back to a random word.",
	},
	"generation.max_fallback_attempts": {
		Comment: "Fallback-word attempts before a placeholder image is emitted.",
	},
	"generation.render_timeout_seconds": {
		Comment: "Deadline for a single render call. A render that exceeds it is treated\nas renderer-fatal for the item. 0 disables the deadline.",
		Alternatives: []string{
			`render_timeout_seconds = 0`,
		},
	},
	"generation.replacement_probe_words": {
		Comment: "Number of sampled words a replacement font must be able to draw\nwhen an initially drawn font is rejected.",
	},

	// ── Script ───────────────────────────────────────────────────
	"script.name": {
		Comment: "Target alphabet. Options: \"arabic\", \"latin\"\nWords containing anything other than base letters of the script are dropped.",
		Alternatives: []string{
			`name = "latin"`,
		},
	},
	"script.placeholder_words": {
		Comment: "Words drawn on placeholder images (defaults to the script's built-in set).",
		Alternatives: []string{
			`placeholder_words = ["كلمة", "مثال", "اختبار"]`,
		},
	},

	// ── Fonts ────────────────────────────────────────────────────
	"fonts.dir": {
		Comment: "Root of the font tree. Relative paths are resolved against the work directory.",
	},
	"fonts.include": {
		Comment: "Doublestar patterns matched against lower-cased paths relative to dir.\nWhen several formats share a base name, .ttf wins over .otf, .woff2 and .woff.",
	},
	"fonts.exclude": {
		Comment: "Patterns removed after inclusion.",
	},
	"fonts.name_filter": {
		Comment: "Keep only fonts whose file name contains this substring.",
		Alternatives: []string{
			`name_filter = "naskh"`,
		},
	},
	"fonts.exclude_failed": {
		Comment: "Skip fonts listed in failed_fonts.txt and in the previous run's\nfailed_fonts_generation.txt.",
	},

	// ── Words ────────────────────────────────────────────────────
	"words.source": {
		Comment: "Where the word pool comes from. Options: \"file\", \"url\"",
		Alternatives: []string{
			`source = "url"`,
		},
	},
	"words.file": {
		Comment: "Newline-separated word list, or a JSON array when the name ends in .json.",
	},
	"words.url": {
		Comment: "Remote word list. The last successful download is cached in the work directory.",
		Alternatives: []string{
			`url = "https://example.com/words.json"`,
		},
	},

	// ── Render ───────────────────────────────────────────────────
	"render.font_size": {
		Comment: "Font size in pixels for corpus images.",
	},
	"render.image_height": {
		Comment: "Final image height. Width follows the aspect ratio, capped at max_width.",
	},
	"render.render_height_scale": {
		Comment: "Intermediate render height is image_height * render_height_scale.",
	},
	"render.max_width": {},
	"render.distort_chance": {
		Comment: "Probability of a random rotate/shear/stretch distortion.",
	},
	"render.blur_chance": {
		Comment: "Probability of a gaussian blur with a radius between 0.5 and 2.0.",
	},
	"render.smoke_font_size": {
		Comment: "Admissibility smoke test settings (distortion and blur are always off).",
	},
	"render.smoke_height": {},
	"render.backgrounds": {
		Comment: "Directory of PNG/JPEG background images. Empty means plain white.",
		Alternatives: []string{
			`backgrounds = ""`,
		},
	},
	"render.jpeg_quality": {},

	// ── Output ───────────────────────────────────────────────────
	"output.images_dir": {
		Comment: "Images are written to <images_dir>/<data-dir argument>.",
	},
	"output.results_dir": {
		Comment: "One result file per worker. Cleared at the start of every run.",
	},

	// ── Progress ─────────────────────────────────────────────────
	"progress.interval_ms": {
		Comment: "How often the progress line is refreshed.",
	},

	// ── Log ──────────────────────────────────────────────────────
	"log.level": {
		Comment: "Log level. Options: \"trace\", \"debug\", \"info\", \"warn\", \"error\"\nApplies to wordsynth.log and every logs/worker_<n>.log.",
		Alternatives: []string{
			`level = "debug"`,
		},
	},
	"log.max_size_mb": {
		Comment: "Maximum log file size in MB before rotation.",
	},

	// ── Export ───────────────────────────────────────────────────
	"export.file": {
		Comment: "CSV written by `wordsynth export`, with img_path,text rows sorted by label.",
	},
	"export.strip_prefix": {
		Comment: "Prefix removed from image paths before they are written.",
	},
	"export.base_dir": {
		Comment: "Directory joined in front of each image path (the export argument overrides it).",
		Alternatives: []string{
			`base_dir = "dataset"`,
		},
	},
}
