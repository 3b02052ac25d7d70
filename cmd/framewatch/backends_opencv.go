//go:build opencv

package main

import (
	_ "framewatch/internal/vision/opencv"
)
