//go:build cgo && !notesseract

package main

// Links the default OCR engine. Build with -tags notesseract (or CGO_ENABLED=0)
// for a binary that only offers ocr.engine: http.
import _ "thsrbook/internal/ocr/tesseract"
