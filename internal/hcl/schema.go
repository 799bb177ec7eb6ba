package hcl

// Schema structs mirror the pipeline file's block layout one-to-one and
// exist only for gohcl decoding; the loader translates them into the
// format-agnostic config model.

// fileRoot decodes the top level of a pipeline file.
type fileRoot struct {
	Pipelines []*pipelineSchema `hcl:"pipeline,block"`
}

// pipelineSchema represents a `pipeline "<name>"` block.
type pipelineSchema struct {
	Name        string             `hcl:"name,label"`
	Timeout     string             `hcl:"timeout,optional"`
	Environment *environmentSchema `hcl:"environment,block"`
	Notebooks   []*notebookSchema  `hcl:"notebook,block"`
	Data        *dataSchema        `hcl:"data,block"`
	Publish     *publishSchema     `hcl:"publish,block"`
}

// environmentSchema represents the `environment` block.
type environmentSchema struct {
	Manifest string           `hcl:"manifest"`
	Python   string           `hcl:"python"`
	Name     string           `hcl:"name,optional"`
	Kernel   string           `hcl:"kernel"`
	TexLive  []*texliveSchema `hcl:"texlive,block"`
}

// texliveSchema represents a named `texlive "<group>"` block.
type texliveSchema struct {
	Name     string   `hcl:"group,label"`
	Packages []string `hcl:"packages"`
}

// notebookSchema represents a `notebook "<name>"` block. Declaration
// order in the file is execution order.
type notebookSchema struct {
	Name string `hcl:"instance_name,label"`
	Path string `hcl:"path"`
}

// dataSchema represents the optional `data` block.
type dataSchema struct {
	EISDir string `hcl:"eis_dir"`
	Scope  string `hcl:"scope,optional"`
}

// publishSchema represents the `publish` block.
type publishSchema struct {
	PlotsDir    string `hcl:"plots_dir"`
	Artifact    string `hcl:"artifact,optional"`
	UploadURL   string `hcl:"upload_url,optional"`
	SummaryPath string `hcl:"summary_path,optional"`
	FailOnEmpty bool   `hcl:"fail_on_empty,optional"`
}
