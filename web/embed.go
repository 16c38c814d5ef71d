package web

import "embed"

// StaticFS embeds the index page and its assets.
//
//go:embed static/*
var StaticFS embed.FS
