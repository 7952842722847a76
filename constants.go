// constants.go - shared pixel-format and screen constants

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
License: GPLv3 or later
*/

package main

const (
	bytesPerPixel = 4 // ARGB8888

	defaultScreenWidth  = 640
	defaultScreenHeight = 480
)
