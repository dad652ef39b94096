package standardize

// The alias tables below are hand-maintained historical data: every rename a
// deployed engine ever reported, mapped to the name result rows carry today.
// The maps are not exhaustive; a name absent from them is already canonical.

// stepAliases maps legacy engine step/tool names to canonical step names.
// transcript_to_webvtt circulated misspelled for a while; both spellings
// resolve to the corrected form.
var stepAliases = map[string]string{
	"adjust_timestamps":    "adjust_transcript_timestamps",
	"aws_comprehend":       "aws_comprehend_ner",
	"aws_transcribe":       "aws_transcribe_stt",
	"speech_segmenter":     "ina_speech_segmenter",
	"VTTgenerator":         "vtt_generator",
	"vtt_generator":        "transcript_to_webvtt",
	"trasncript_to_webvtt": "transcript_to_webvtt",
}

// outputAliases maps legacy output names to canonical output names,
// independent of the producing step.
var outputAliases = map[string]string{
	"amp_entity_extraction":        "amp_entities",
	"amp_kept_segments":            "kept_segments",
	"amp_segmentation":             "amp_segments",
	"audio_file":                   "audio_extracted",
	"aws_transcribe_transcript":    "aws_transcript",
	"corrected_draftjs":            "draftjs_corrected",
	"corrected_draftjs_transcript": "draftjs_corrected",
	"corrected_iiif":               "iiif_corrected",
	"original_draftjs":             "draftjs_uncorrected",
	"original_draftjs_transcript":  "draftjs_uncorrected",
	"original_iiif":                "iiif_uncorrected",
	"output_ner":                   "amp_entities_corrected",
	"output_transcript":            "amp_transcript_corrected",
	"segmented_audio_file":         "speech_audio",
	"webVtt":                       "web_vtt",
}

// timestampOutputAliases covers outputs whose legacy names collide across
// steps: timestamp-adjustment steps reuse their input output names, so the
// adjusted variants must be disambiguated by parent step.
var timestampOutputAliases = map[string]string{
	"amp_transcript":  "amp_transcript_adjusted",
	"amp_diarization": "amp_diarization_adjusted",
}

// scopedOutputAliases maps canonical step names to the alias table that
// applies within that step. A step listed here never falls back to the
// global table.
var scopedOutputAliases = map[string]map[string]string{
	"adjust_transcript_timestamps":  timestampOutputAliases,
	"adjust_diarization_timestamps": timestampOutputAliases,
}

// outputTypes maps canonical output names to their file type, for outputs
// whose engine record carries no extension.
var outputTypes = map[string]string{
	"amp_diarization":          "segment",
	"amp_diarization_adjusted": "segment",
	"amp_entities":             "ner",
	"amp_entities_corrected":   "ner",
	"amp_segments":             "segment",
	"amp_transcript":           "transcript",
	"amp_transcript_adjusted":  "transcript",
	"amp_transcript_corrected": "transcript",
	"audio_extracted":          "wav",
	"speech_audio":             "speech",
	"web_vtt":                  "vtt",
}
