//go:build !debug

// Package debug provides cheap, strippable assertions. The no-op build
// (this file) is what ships; a "debug" build tag variant can be added
// later if assertions need teeth during development.
/*
 * Copyright (c) 2018-2021, NVIDIA CORPORATION. All rights reserved.
 */
package debug

func ON() bool { return false }

func Func(_ func()) {}

func Assert(_ bool, _ ...any)            {}
func AssertNoErr(_ error)                {}
func Assertf(_ bool, _ string, _ ...any) {}
