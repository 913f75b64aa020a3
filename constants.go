package main

type Mode int

const (
	ModeStartup Mode = iota
	ModeNormal
	ModePlace
	ModeMove
	ModeConnect
	ModeFileInput
	ModeConfirm
)

type FileOperation int

const (
	FileOpSave FileOperation = iota
	FileOpOpen
	FileOpSavePNG
	FileOpSaveVisualTXT
	FileOpNewModule
	FileOpExportModule
	FileOpImportModules
)

type ConfirmAction int

const (
	ConfirmDelete ConfirmAction = iota
	ConfirmQuit
	ConfirmOpen
	ConfirmOverwriteFile
)

const (
	projectExt  = ".json"
	moduleExt   = ".module.json"
	pngExt      = ".png"
	visualExt   = ".txt"
	minTPS      = 0
	maxTPS      = 1000
	eventBuffer = 16
)
