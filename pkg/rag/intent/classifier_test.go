package intent

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		message string
		want    string
	}{
		{message: "hello", want: Greeting},
		{message: "Hi!", want: Greeting},
		{message: "hello there", want: Greeting},
		{message: "你好", want: Greeting},
		{message: "您好！", want: Greeting},
		{message: "bye", want: Farewell},
		{message: "再见~", want: Farewell},
		{message: "Goodbye.", want: Farewell},
		{message: "你好吗", want: Question},
		{message: "hello, how do I reset my password?", want: Question},
		{message: "what does the premium plan cost", want: Question},
		{message: "", want: Question},
		{message: "   ", want: Question},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			if got := Classify(tt.message); got != tt.want {
				t.Errorf("Classify(%q) = %q, want %q", tt.message, got, tt.want)
			}
		})
	}
}

func TestClassifyRequiresWordBoundary(t *testing.T) {
	for _, msg := range []string{"history", "heyday", "hiring"} {
		if got := Classify(msg); got != Question {
			t.Errorf("Classify(%q) = %q, want %q", msg, got, Question)
		}
	}
	if got := Classify("你好呀"); got != Greeting {
		t.Errorf("Classify(%q) = %q, want %q", "你好呀", got, Greeting)
	}
}
