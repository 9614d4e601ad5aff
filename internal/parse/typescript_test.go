package parse

import (
	"testing"
)

func TestTypeScriptParser_Interfaces(t *testing.T) {
	src := `export interface UserProps extends BaseProps {
  id: number;
  name: string;
}

export type UserId = number;

export function makeUser(id: UserId): UserProps {
  return build(id);
}
`
	nodes, err := NewTypeScriptParser().Parse("user.ts", []byte(src))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	iface := findNode(t, nodes, "UserProps")
	if iface.Type != NodeInterface {
		t.Errorf("UserProps type = %s, want interface", iface.Type)
	}
	if !containsStr(iface.Inherits, "BaseProps") {
		t.Errorf("inherits = %v, want BaseProps", iface.Inherits)
	}

	alias := findNode(t, nodes, "UserId")
	if alias.Type != NodeType {
		t.Errorf("UserId type = %s, want type", alias.Type)
	}

	fn := findNode(t, nodes, "makeUser")
	if fn.Type != NodeFunction {
		t.Errorf("makeUser type = %s, want function", fn.Type)
	}
	if !containsStr(fn.Calls, "build") {
		t.Errorf("calls = %v, want build", fn.Calls)
	}
}

func TestTypeScriptParser_TSXComponent(t *testing.T) {
	src := `export default function Dashboard() {
  const data = useDashboard();
  return (
    <Layout>
      <Chart data={data} />
    </Layout>
  );
}
`
	nodes, err := NewTypeScriptParser().Parse("app/dashboard/page.tsx", []byte(src))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	dash := findNode(t, nodes, "Dashboard")
	if dash.Type != NodeComponent {
		t.Errorf("Dashboard type = %s, want component", dash.Type)
	}
	if !containsStr(dash.Renders, "Layout") || !containsStr(dash.Renders, "Chart") {
		t.Errorf("renders = %v, want Layout and Chart", dash.Renders)
	}
	if !containsStr(dash.Hooks(), "useDashboard") {
		t.Errorf("hooks = %v, want useDashboard", dash.Hooks())
	}
	if dash.FrameworkRole != RoleNextAppRoute {
		t.Errorf("framework role = %q, want %q", dash.FrameworkRole, RoleNextAppRoute)
	}
}

func TestTypeScriptParser_ClassImplements(t *testing.T) {
	src := `class PostgresStore extends BaseStore implements Store {
  save(): void {}
}
`
	nodes, err := NewTypeScriptParser().Parse("store.ts", []byte(src))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	cls := findNode(t, nodes, "PostgresStore")
	if !containsStr(cls.Inherits, "BaseStore") {
		t.Errorf("inherits = %v, want BaseStore", cls.Inherits)
	}
	if !containsStr(cls.Inherits, "Store") {
		t.Errorf("inherits = %v, want Store", cls.Inherits)
	}
}
