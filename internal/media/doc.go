// Package media wraps the external tools the stage workers shell out to:
// yt-dlp for source downloads, ffmpeg for audio extraction and clip cutting,
// and the whisper transcription script.
package media
