package analysis_test

import (
	"context"
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/jonwraymond/toolgate/analysis"
)

func Example() {
	session, err := analysis.New(analysis.Options{})
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	defer session.Close()

	ctx := context.Background()
	if err := session.Load(ctx, `function double(n) return n * 2 end`); err != nil {
		fmt.Println("error:", err)
		return
	}

	result := session.Call(ctx, "double", lua.LNumber(21))
	if !result.OK() {
		fmt.Println("error:", result.Error)
		return
	}
	fmt.Println("double(21) =", result.Values[0])

	fmt.Println("positive:", session.CheckGuard("positive", "x > 0", 42))
	// Output:
	// double(21) = 42
	// positive: satisfied
}

func ExampleSession_RunSource() {
	session, err := analysis.New(analysis.Options{})
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	defer session.Close()

	result := session.RunSource(context.Background(), `require("io")`)
	fmt.Println("candidate succeeded:", result.OK())
	// Output:
	// candidate succeeded: false
}
