package dialect

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theirongolddev/dbchat/internal/errs"
)

func TestRulesStripSingleConstruct(t *testing.T) {
	tests := []struct {
		name string
		rule Rule
		in   string
		want string
	}{
		{"character set", CharacterSet, "`name` varchar(50) CHARACTER SET utf8mb4 NOT NULL,", "`name` varchar(50) NOT NULL,"},
		{"collate", Collate, ") ENGINE=InnoDB COLLATE=utf8mb4_bin;", ") ENGINE=InnoDB;"},
		{"engine", Engine, ") ENGINE=InnoDB;", ");"},
		{"default charset", DefaultCharset, ") DEFAULT CHARSET=latin1;", ");"},
		{"auto increment", AutoIncrement, "`id` int NOT NULL AUTO_INCREMENT,", "`id` int NOT NULL,"},
		{"secondary key", SecondaryKey, "  PRIMARY KEY (`id`),\n  KEY `fk_customer` (`customer_id`),\n", "  PRIMARY KEY (`id`),\n \n"},
		{
			"foreign key with comma",
			ForeignKey,
			"  `x` int, CONSTRAINT `fk_o` FOREIGN KEY (`customer_id`) REFERENCES `customers` (`id`),\n",
			"  `x` int,\n",
		},
		{
			"foreign key without comma",
			ForeignKey,
			"  KEY `k` (`a`), CONSTRAINT `fk_o` FOREIGN KEY (`a`) REFERENCES `b` (`id`)\n)",
			"  KEY `k` (`a`),\n)",
		},
		{"int type", IntType, "`qty` int NOT NULL", "`qty` INTEGER NOT NULL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rule.Apply(tt.in))
		})
	}
}

func TestNormalizeLeavesSurroundingTextIntact(t *testing.T) {
	prefix := "-- header comment\nCREATE TABLE `t` (\n  `a` varchar(10)"
	suffix := " NOT NULL\n);\n"

	out := Normalize(prefix + " CHARACTER SET utf8" + suffix)
	assert.Equal(t, prefix+suffix, out)
}

func TestNormalizeTableOptions(t *testing.T) {
	in := "CREATE TABLE `t` (`a` varchar(5)) ENGINE=InnoDB DEFAULT CHARSET=utf8;"
	out := Normalize(in)

	assert.NotContains(t, out, "ENGINE=")
	assert.NotContains(t, out, "DEFAULT CHARSET=")
	assert.Equal(t, "CREATE TABLE `t` (`a` varchar(5));", out)
}

func TestNormalizeAutoIncrementThenIntType(t *testing.T) {
	// AUTO_INCREMENT is stripped first, leaving "int" at the end of input.
	assert.Equal(t, "id INTEGER", Normalize("id int AUTO_INCREMENT"))
	assert.Equal(t, "`id` INTEGER NOT NULL,", Normalize("`id` int NOT NULL AUTO_INCREMENT,"))
	assert.NotContains(t, Normalize("id int AUTO_INCREMENT"), "  ")
}

func TestIntTypeIsCaseInsensitiveAndSpaceDelimited(t *testing.T) {
	assert.Equal(t, "a INTEGER NOT NULL, b INTEGER DEFAULT 0", Normalize("a INT NOT NULL, b Int DEFAULT 0"))
	assert.Equal(t, "a INT, b Int)", Normalize("a INT, b Int)"))
	assert.Equal(t, "a int\n", Normalize("a int\n"))
	assert.Equal(t, "INSERT INTO t VALUES ('size int,large')", Normalize("INSERT INTO t VALUES ('size int,large')"))
	assert.Equal(t, "a int(11) NOT NULL", Normalize("a int(11) NOT NULL"))
	assert.Equal(t, "a integer NOT NULL", Normalize("a integer NOT NULL"))
	assert.Equal(t, "SELECT print FROM t", Normalize("SELECT print FROM t"))
}

func TestMultiColumnKeyIsNotRemoved(t *testing.T) {
	in := "  PRIMARY KEY (`id`),\n  KEY `idx` (`a`,`b`),\n  `c` text\n"
	assert.Equal(t, in, Normalize(in))
}

func TestNormalizeIsDeterministic(t *testing.T) {
	in := dumpFixture
	first := Normalize(in)
	for i := 0; i < 5; i++ {
		require.Equal(t, first, Normalize(in))
	}
}

func TestNormalizeFullDump(t *testing.T) {
	out := Normalize(dumpFixture)

	for _, token := range []string{"ENGINE=", "DEFAULT CHARSET=", "COLLATE=", "AUTO_INCREMENT", "CHARACTER SET", "FOREIGN KEY", "KEY `fk_customer`"} {
		assert.NotContains(t, out, token)
	}
	assert.Contains(t, out, "`id` INTEGER NOT NULL,")
	assert.Contains(t, out, "PRIMARY KEY (`id`)")
}

func TestRulesOrder(t *testing.T) {
	names := make([]string, 0, len(chain))
	for _, r := range Rules() {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{
		"character-set", "collate", "engine", "default-charset",
		"auto-increment", "secondary-key", "foreign-key", "int-type",
	}, names)

	// Mutating the returned slice must not affect the chain.
	rules := Rules()
	rules[0] = IntType
	assert.Equal(t, "character-set", Rules()[0].Name)
}

func TestTraceCountsHits(t *testing.T) {
	out, hits := Trace(dumpFixture)
	assert.Equal(t, Normalize(dumpFixture), out)

	byRule := make(map[string]int, len(hits))
	for _, h := range hits {
		byRule[h.Rule] = h.Hits
	}
	assert.Equal(t, 2, byRule["engine"])
	assert.Equal(t, 2, byRule["auto-increment"])
	assert.Equal(t, 1, byRule["foreign-key"])
	assert.Equal(t, 1, byRule["secondary-key"])
}

func TestRegexNormalizerNeverFails(t *testing.T) {
	var n Normalizer = RegexNormalizer{}
	out, err := n.Normalize("")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestNormalizationErrorKind(t *testing.T) {
	err := &NormalizationError{Rule: "parser", Err: errors.New("unexpected token")}
	assert.True(t, errs.Is(err, errs.Normalization))
	assert.True(t, strings.Contains(err.Error(), "unexpected token"))
}

const dumpFixture = "DROP TABLE IF EXISTS `customers`;\n" +
	"CREATE TABLE `customers` (\n" +
	"  `id` int NOT NULL AUTO_INCREMENT,\n" +
	"  `name` varchar(100) CHARACTER SET utf8mb4 NOT NULL,\n" +
	"  PRIMARY KEY (`id`)\n" +
	") ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_0900_ai_ci;\n" +
	"CREATE TABLE `orders` (\n" +
	"  `id` int NOT NULL AUTO_INCREMENT,\n" +
	"  `customer_id` int NOT NULL,\n" +
	"  PRIMARY KEY (`id`),\n" +
	"  KEY `fk_customer` (`customer_id`),\n" +
	"  CONSTRAINT `fk_customer` FOREIGN KEY (`customer_id`) REFERENCES `customers` (`id`)\n" +
	") ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;\n"
