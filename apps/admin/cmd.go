package main

import (
	"errors"
	"flag"
	"fmt"
	"syscall"

	"golang.org/x/term"

	"github.com/trezcool/mafunzo/core/bulkimport"
	"github.com/trezcool/mafunzo/core/college"
	"github.com/trezcool/mafunzo/core/user"
	"github.com/trezcool/mafunzo/storage/database"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db        *database.DB
	usrRepo   user.Repository
	colRepo   college.Repository
	importSvc bulkimport.Service
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS] - run database migrations (up, down, status, ...)")
	fmt.Println("  adduser -username USERNAME -email EMAIL [-admin] [-college COLLEGE] - update or create a user. The password will be prompted next.")
	fmt.Println("  addcollege -name NAME -code CODE - create a college")
	fmt.Println("  resetpassword -username USERNAME|EMAIL - reset user's password")
	fmt.Println("  import -kind student|trainer -college COLLEGE -by USERNAME|EMAIL -file FILE - bulk-import accounts from a CSV file")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ExitOnError)
	addUserUname := addUserCmd.String("username", "", "The user's username.")
	addUserEmail := addUserCmd.String("email", "", "The user's email.")
	addUserAdmin := addUserCmd.Bool("admin", false, "Grant all roles to the user.")
	addUserCollege := addUserCmd.String("college", "", "The college's ID or code to attach the user to.")

	addCollegeCmd := flag.NewFlagSet("addcollege", flag.ExitOnError)
	addCollegeName := addCollegeCmd.String("name", "", "The college's name.")
	addCollegeCode := addCollegeCmd.String("code", "", "The college's unique short code.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ExitOnError)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's username or email. The password will be prompted next.")

	importCmd := flag.NewFlagSet("import", flag.ExitOnError)
	importKind := importCmd.String("kind", "", "The account kind to import: student or trainer.")
	importCollege := importCmd.String("college", "", "The college's ID or code to import into.")
	importBy := importCmd.String("by", "", "The submitting user's username or email.")
	importFile := importCmd.String("file", "", "The CSV file to import.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserUname == "" || *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(*addUserUname, *addUserEmail, pwd, *addUserAdmin, *addUserCollege)
	case "addcollege":
		if err := addCollegeCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addCollegeName == "" || *addCollegeCode == "" {
			addCollegeCmd.Usage()
			return errHelp
		}
		return cli.addCollege(*addCollegeName, *addCollegeCode)
	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordUname, pwd)
	case "import":
		if err := importCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *importKind == "" || *importCollege == "" || *importBy == "" || *importFile == "" {
			importCmd.Usage()
			return errHelp
		}
		return cli.importFile(*importKind, *importCollege, *importBy, *importFile)
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) promptPassword() (string, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(syscall.Stdin)
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}
