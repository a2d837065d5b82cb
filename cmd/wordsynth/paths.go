package main

import "tools.zach/dev/wordsynth/internal/paths"

// WorkPaths aliases [paths.WorkDir] so command code can build run-directory
// paths without qualifying the internal package.
type WorkPaths = paths.WorkDir
