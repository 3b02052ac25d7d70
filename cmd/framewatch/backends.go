package main

import (
	// The software backend is always available.
	_ "framewatch/internal/vision/software"
)
