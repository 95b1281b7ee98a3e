// Package ioutils provides file system and image processing utilities.
//
// This package contains functions for:
//   - Atomic file writing and directory creation
//   - Cover art sniffing (JPEG, PNG, WebP)
//   - Image resizing and JPEG normalization
//
// # File Operations
//
//	// Write data atomically, creating parent directories
//	err := ioutils.WriteFile(ctx, "/path/to/file.flac", data)
//
//	// Save callback rooted at a directory, as used by bulk downloads
//	save := ioutils.DirSaver(ctx, "/music/Artist - Album")
//
// # Image Processing
//
// SniffImage checks magic bytes; the ImageService handles cover
// manipulation:
//
//	svc := ioutils.NewImageService()
//
//	// Convert WebP/PNG to JPEG and fit within 1000x1000
//	cover, _ := svc.Normalize(ctx, imageData, 1000)
package ioutils
