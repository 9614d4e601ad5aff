package parse

import (
	"testing"
)

func TestRustParser_Parse(t *testing.T) {
	src := `pub mod storage;

pub struct Config {
    path: String,
}

pub trait Loader {
    fn load(&self) -> Config;
}

impl Config {
    pub fn new(path: String) -> Self {
        validate(&path);
        Config { path }
    }

    pub fn read(&self) -> String {
        fs::read_to_string(&self.path).unwrap()
    }
}

fn main() {
    let cfg = Config::new("swarm.yaml".into());
    cfg.read();
}
`
	p := NewRustParser()
	nodes, err := p.Parse("main.rs", []byte(src))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if st := findNode(t, nodes, "Config"); st.Type != NodeStruct {
		t.Errorf("Config type = %s, want struct", st.Type)
	}
	if tr := findNode(t, nodes, "Loader"); tr.Type != NodeTrait {
		t.Errorf("Loader type = %s, want trait", tr.Type)
	}
	if mod := findNode(t, nodes, "storage"); mod.Type != NodeModule {
		t.Errorf("storage type = %s, want module", mod.Type)
	}

	// Impl methods carry the Type::name shape
	newMethod := findNode(t, nodes, "Config::new")
	if newMethod.Type != NodeMethod {
		t.Errorf("Config::new type = %s, want method", newMethod.Type)
	}
	if !containsStr(newMethod.Calls, "validate") {
		t.Errorf("Config::new calls = %v, want validate", newMethod.Calls)
	}

	// Scoped and method calls contribute unqualified names
	mainFn := findNode(t, nodes, "main")
	if !containsStr(mainFn.Calls, "new") {
		t.Errorf("main calls = %v, want new", mainFn.Calls)
	}
	if !containsStr(mainFn.Calls, "read") {
		t.Errorf("main calls = %v, want read", mainFn.Calls)
	}
}

func TestRustParser_Lines(t *testing.T) {
	src := `fn tiny() {
    work();
}
`
	nodes, err := NewRustParser().Parse("tiny.rs", []byte(src))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	fn := findNode(t, nodes, "tiny")
	if fn.StartLine != 1 || fn.EndLine != 3 {
		t.Errorf("lines = %d..%d, want 1..3", fn.StartLine, fn.EndLine)
	}
	want := "fn tiny() {\n    work();\n}"
	if fn.Content != want {
		t.Errorf("content = %q, want %q", fn.Content, want)
	}
}
